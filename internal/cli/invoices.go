package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInvoicesCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Run invoicing jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Invoice every customer with unbilled completed units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := b.Billing.TriggerSweep(cmd.Context(), s.actor())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s customers=%d invoices=%d mirrors=%d skipped=%d failed=%d\n",
				titleStyle.Render("sweep"), rep.Customers, len(rep.Invoices), rep.Mirrors, rep.Skipped, rep.Failed)
			fmt.Fprint(out, renderInvoices(rep.Invoices))
			if rep.Failed > 0 {
				return fmt.Errorf("sweep: %d customers failed", rep.Failed)
			}
			return nil
		},
	})
	cmd.AddCommand(newCloseMonthCmd(s))
	cmd.AddCommand(&cobra.Command{
		Use:   "mark-overdue",
		Short: "Mark unpaid invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			invs, err := b.Billing.MarkOverdue(cmd.Context())
			if err != nil {
				return fmt.Errorf("mark overdue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d invoices\n", titleStyle.Render("overdue"), len(invs))
			fmt.Fprint(cmd.OutOrStdout(), renderInvoices(invs))
			return nil
		},
	})
	return cmd
}

func newCloseMonthCmd(s *session) *cobra.Command {
	var (
		month, year int
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "close-month",
		Short: "Invoice the units of a past month that no window covered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12, got %d", month)
			}
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			at := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, b.Billing.Location())
			rep, err := b.Billing.CloseMonth(cmd.Context(), s.actor(), at, dryRun)
			if err != nil {
				return fmt.Errorf("close %04d-%02d: %w", year, month, err)
			}
			title := "close-month"
			if dryRun {
				title += " (dry run)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s customers=%d invoices=%d mirrors=%d skipped=%d failed=%d\n",
				titleStyle.Render(title), at.Format("2006-01"), rep.Customers, len(rep.Invoices), rep.Mirrors, rep.Skipped, rep.Failed)
			fmt.Fprint(out, renderInvoices(rep.Invoices))
			if rep.Failed > 0 {
				return fmt.Errorf("close-month: %d customers failed", rep.Failed)
			}
			return nil
		},
	}
	now := time.Now()
	prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	cmd.Flags().IntVar(&month, "month", int(prev.Month()), "month to close (1-12)")
	cmd.Flags().IntVar(&year, "year", prev.Year(), "year of the month to close")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the invoices without storing them")
	return cmd
}

func newSubscriptionsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Maintain customer subscriptions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "recalc-usage <customer-id>",
		Short: "Recount package credits used since the last package purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			sub, err := b.Billing.RecalculateUsage(cmd.Context(), s.actor(), args[0])
			if err != nil {
				return fmt.Errorf("recalculating %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s credits used %d of %d, %d remaining\n",
				sub.CustomerID, sub.PackageCreditsUsed, sub.PackageCreditsGranted, sub.RemainingCredits())
			return nil
		},
	})
	return cmd
}
