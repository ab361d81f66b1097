package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPricingCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Manage pricing configurations",
	}
	cmd.AddCommand(newPricingSeedCmd(s))
	cmd.AddCommand(newPricingImportCmd(s))
	cmd.AddCommand(newPricingActivateCmd(s))
	cmd.AddCommand(newPricingListCmd(s))
	return cmd
}

func newPricingSeedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-default",
		Short: "Create and activate the default configuration if none is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			cfg, created, err := b.Billing.SeedDefaultPricing(cmd.Context(), s.actor())
			if err != nil {
				return fmt.Errorf("seeding pricing: %w", err)
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintln(out, okStyle.Render("default pricing created and activated"))
			} else {
				fmt.Fprintln(out, "an active configuration already exists; nothing changed")
			}
			fmt.Fprint(out, renderPricing(cfg))
			return nil
		},
	}
}

func newPricingImportCmd(s *session) *cobra.Command {
	var activate bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a configuration (and plans) from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadPricingFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := f.configuration()
			if err != nil {
				return err
			}
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			for _, pf := range f.Plans {
				p, err := b.Billing.SavePlan(ctx, pf.plan())
				if err != nil {
					return fmt.Errorf("plan %q: %w", pf.Name, err)
				}
				fmt.Fprintf(out, "plan %s saved (%s)\n", p.ID, p.Type)
			}

			cfg, err = b.Billing.CreatePricing(ctx, s.actor(), cfg)
			if err != nil {
				return fmt.Errorf("creating pricing: %w", err)
			}
			if activate || f.Activate {
				if cfg, err = b.Billing.ActivatePricing(ctx, s.actor(), cfg.ID); err != nil {
					return fmt.Errorf("activating pricing: %w", err)
				}
			}
			fmt.Fprint(out, renderPricing(cfg))
			return nil
		},
	}
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the imported configuration")
	return cmd
}

func newPricingActivateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <config-id>",
		Short: "Make a configuration the only active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := b.Billing.ActivatePricing(cmd.Context(), s.actor(), args[0])
			if err != nil {
				return fmt.Errorf("activating %s: %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPricing(cfg))
			return nil
		},
	}
}

func newPricingListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.get(cmd.Context())
			if err != nil {
				return err
			}
			cfgs, err := b.Billing.ListPricing(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cfgs {
				fmt.Fprint(cmd.OutOrStdout(), renderPricing(c))
			}
			return nil
		},
	}
}
