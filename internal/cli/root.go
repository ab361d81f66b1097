// Package cli implements settlectl, the operator command line.
package cli

import (
	"context"
	"errors"

	"settlement-platform/internal/audit"

	"github.com/spf13/cobra"
)

type session struct {
	open     Opener
	backend  *Backend
	operator string
}

// backend opens the Backend once per invocation.
func (s *session) get(ctx context.Context) (*Backend, error) {
	if s.backend != nil {
		return s.backend, nil
	}
	if s.open == nil {
		return nil, errors.New("settlectl: no backend configured")
	}
	b, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.backend = b
	return b, nil
}

func (s *session) actor() audit.Actor { return operatorActor(s.operator) }

func (s *session) close() {
	if s.backend != nil && s.backend.Close != nil {
		s.backend.Close()
	}
}

func newRootCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "Operate the settlement platform",
		Long:          "settlectl manages pricing, runs invoicing jobs and prints financial reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&s.operator, "operator", defaultOperator(), "operator name recorded in the audit trail")

	cmd.AddCommand(newPricingCmd(s))
	cmd.AddCommand(newInvoicesCmd(s))
	cmd.AddCommand(newSubscriptionsCmd(s))
	cmd.AddCommand(newReportCmd(s))
	cmd.AddCommand(newTokenCmd(s))
	return cmd
}

// NewRootCmdForTest returns the root command backed by open.
func NewRootCmdForTest(open Opener) *cobra.Command {
	return newRootCmd(&session{open: open})
}

func Execute(ctx context.Context) error {
	s := &session{open: openFromEnv}
	defer s.close()
	return newRootCmd(s).ExecuteContext(ctx)
}
