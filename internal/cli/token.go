package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(s *session) *cobra.Command {
	var (
		userID, party, role string
		ttl                 time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for operators and integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = "cli:" + s.operator
			}
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			if b.Tokens == nil {
				return errors.New("token issuance is not configured")
			}
			tok, err := b.Tokens.IssueAccess(time.Now(), userID, party, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject user id (defaults to the operator)")
	cmd.Flags().StringVar(&role, "role", "admin", "center, producer or admin")
	cmd.Flags().StringVar(&party, "party", "", "customer or producer id the token acts for")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
