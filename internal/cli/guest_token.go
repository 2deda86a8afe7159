package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
)

const guestSecretEnv = "GUEST_TOKEN_SECRET"

func NewGuestTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest-token",
		Short: "Mint guest tokens for testing signed web scans",
	}

	var guest, secret string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a guest token bound to a guest id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretFrom(secret, guestSecretEnv)
			if err != nil {
				return err
			}
			tokens, err := proof.NewGuestTokens(key, nil)
			if err != nil {
				return err
			}
			tok, err := tokens.IssueGuest(guest, ttl)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"guest_id": guest, "token": tok})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&guest, "guest", "", "guest id (required)")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	issue.Flags().StringVar(&secret, "secret", "", "guest token secret (default $"+guestSecretEnv+")")
	_ = issue.MarkFlagRequired("guest")

	cmd.AddCommand(issue)
	return cmd
}
