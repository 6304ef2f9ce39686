package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/chris/dayplan/internal/discord"
)

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.DiscordToken == "" {
				return errors.New("DAYPLAN_DISCORD_BOT_TOKEN is not set")
			}

			bot, err := discord.NewBot(a.cfg.DiscordToken, a.agent, a.resolver, a.log)
			if err != nil {
				return err
			}
			defer bot.Close()

			a.log.Info(ctx, "discord: bot is running, press Ctrl+C to exit", nil)
			<-ctx.Done()
			a.log.Info(ctx, "discord: shutting down", nil)
			return nil
		},
	}
}
