package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
)

func chatCmd() *cobra.Command {
	var userID, conversationID string
	var showUsage bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.db.UserByID(ctx, userID)
			if err != nil {
				return fmt.Errorf("loading user %s: %w", userID, err)
			}
			ctx = auth.WithPrincipal(ctx, auth.Principal{
				ID:          u.ID,
				DisplayName: u.DisplayName,
				Language:    u.Language,
				Timezone:    u.Timezone,
			})
			return runChat(ctx, a.agent, os.Stdin, os.Stdout, conversationID, showUsage)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID to chat as (required)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&showUsage, "usage", false, "print tokens and cost after each reply")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runChat(ctx context.Context, ag *agent.Agent, in *os.File, out io.Writer, conversationID string, showUsage bool) error {
	scanner := bufio.NewScanner(in)

	// Check if stdin is a pipe (non-interactive)
	stat, _ := in.Stat()
	isPipe := stat != nil && (stat.Mode()&os.ModeCharDevice) == 0

	if !isPipe {
		fmt.Fprint(out, "dayplan> ")
	}

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			if !isPipe {
				fmt.Fprint(out, "dayplan> ")
			}
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := ag.SendMessage(ctx, input, conversationID)
		switch {
		case err == nil:
			conversationID = reply.ConversationID
			fmt.Fprintln(out, reply.Message)
		case errors.Is(err, agent.ErrTurnTimeout) && reply != nil:
			fmt.Fprintln(out, reply.Message)
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if showUsage && reply != nil {
			fmt.Fprintf(out, "  (%s tokens, %s¢, %d tool rounds)\n",
				humanize.Comma(reply.TokensUsed()), humanize.FtoaWithDigits(reply.CostCents, 4), reply.Rounds)
		}

		if isPipe {
			break // single exchange in pipe mode
		}
		fmt.Fprint(out, "dayplan> ")
	}
	return scanner.Err()
}
