package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "User management"}

	var name, language, timezone, discordID string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user and print their API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			if language == "" {
				language = cfg.DefaultLocale
			}
			if timezone == "" {
				timezone = cfg.DefaultTimezone
			}
			u, err := database.CreateUser(ctx, name, language, timezone)
			if err != nil {
				return err
			}
			if discordID != "" {
				if err := database.LinkDiscord(ctx, u.ID, discordID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:     %s\n", u.ID)
			fmt.Fprintf(out, "name:     %s\n", u.DisplayName)
			fmt.Fprintf(out, "language: %s\n", u.Language)
			fmt.Fprintf(out, "timezone: %s\n", u.Timezone)
			fmt.Fprintf(out, "token:    %s\n", u.APIToken)
			if discordID != "" {
				fmt.Fprintf(out, "discord:  %s\n", discordID)
			}
			return nil
		},
	}
	addCmd.Flags().StringVarP(&name, "name", "n", "", "display name (required)")
	addCmd.Flags().StringVarP(&language, "lang", "l", "", "preferred language, e.g. es or en (defaults to DAYPLAN_DEFAULT_LOCALE)")
	addCmd.Flags().StringVarP(&timezone, "tz", "t", "", "IANA time zone (defaults to DAYPLAN_DEFAULT_TIMEZONE)")
	addCmd.Flags().StringVar(&discordID, "discord", "", "link a Discord user ID")
	_ = addCmd.MarkFlagRequired("name")
	cmd.AddCommand(addCmd)

	return cmd
}
