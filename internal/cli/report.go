package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"settlement-platform/internal/reporting"

	"github.com/spf13/cobra"
)

func newReportCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reports",
	}
	cmd.AddCommand(newFinancialReportCmd(s))
	return cmd
}

func newFinancialReportCmd(s *session) *cobra.Command {
	var (
		from, to   string
		currency   string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "financial",
		Short: "Summarize revenue, payouts and platform earnings over a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := parseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := b.Reports.FinancialSummary(cmd.Context(), reporting.FinancialSummaryRequest{
				Range:    reporting.TimeRange{From: start, To: end},
				Currency: currency,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderFinancial(sum))
			return nil
		},
	}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	cmd.Flags().StringVar(&from, "from", monthStart.Format(time.DateOnly), "range start (inclusive), YYYY-MM-DD or RFC3339")
	cmd.Flags().StringVar(&to, "to", monthStart.AddDate(0, 1, 0).Format(time.DateOnly), "range end (exclusive)")
	cmd.Flags().StringVar(&currency, "currency", "", "only count this currency")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}
