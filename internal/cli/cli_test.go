package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/cli"
	"settlement-platform/internal/config"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/reporting"
	"settlement-platform/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	st      *memory.Store
	backend *cli.Backend
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, MaxTokenTTL: 24 * time.Hour})
	require.NoError(t, err)
	return &env{st: st, backend: &cli.Backend{
		Billing: billing.NewService(st, nil, nil, billing.Options{}),
		Reports: reporting.NewService(reporting.NewStoreRepository(st), "TRY"),
		Tokens:  tokens,
	}}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCmdForTest(func(ctx context.Context) (*cli.Backend, error) { return e.backend, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--operator", "tester"))
	err := root.Execute()
	return out.String(), err
}

func TestPricingSeedDefault(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "pricing", "seed-default")
	require.NoError(t, err)
	assert.Contains(t, out, "created and activated")
	assert.Contains(t, out, "450.00")

	out, err = e.run(t, "pricing", "seed-default")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing changed")

	events := e.st.AuditEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, "cli:tester", events[0].ActorID)
}

const pricingYAML = `
name: spring 2026
effective_date: 2026-04-01
physical_unit_price: 500
digital_unit_price: "60.50"
monthly_fee: 120
commission_rate: 7
card_fee_rate: 2.5
tax_rate: 20
activate: true
plans:
  - id: pkg-20
    name: twenty pack
    type: package
    credits: 20
    price: 7500
`

func TestPricingImport(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pricingYAML), 0o644))

	out, err := e.run(t, "pricing", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "plan pkg-20 saved")
	assert.Contains(t, out, "active")

	cfg, err := e.backend.Billing.ActivePricing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "spring 2026", cfg.Name)
	assert.Equal(t, "60.5", cfg.DigitalUnitPrice.String())
	assert.Equal(t, 2026, cfg.EffectiveDate.Year())
}

func TestPricingImportRejectsUnknownFields(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pricingYAML+"surprise: 1\n"), 0o644))

	_, err := e.run(t, "pricing", "import", path)
	assert.Error(t, err)
}

func TestPricingImportRequiresPrices(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: partial\nphysical_unit_price: 1\n"), 0o644))

	_, err := e.run(t, "pricing", "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digital_unit_price is required")
}

func TestPricingActivateUnknown(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "pricing", "activate", "missing")
	assert.Error(t, err)
}

func TestInvoicesSweepNothingPending(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "invoices", "sweep")
	require.NoError(t, err, out)
	assert.Contains(t, out, "customers=0")
}

func TestInvoicesMarkOverdue(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "invoices", "mark-overdue")
	require.NoError(t, err)
	assert.Contains(t, out, "0 invoices")
}

func TestReportFinancialJSON(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "report", "financial", "--from", "2026-03-01", "--to", "2026-04-01", "--json")
	require.NoError(t, err)

	var sum reporting.FinancialSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "TRY", sum.Currency)
	assert.Equal(t, 0, sum.Customers.Invoices)
}

func TestReportFinancialRendered(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "report", "financial", "--from", "2026-03-01", "--to", "2026-04-01")
	require.NoError(t, err)
	assert.Contains(t, out, "net platform earnings")
}

func TestReportFinancialBadDate(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "report", "financial", "--from", "March", "--to", "2026-04-01")
	assert.Error(t, err)
}

func TestTokenIssue(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "token", "--role", "center", "--party", "cust-1")
	require.NoError(t, err)

	claims, err := e.backend.Tokens.Verify(string(bytes.TrimSpace([]byte(out))), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "cli:tester", claims.UserID)
	assert.Equal(t, "cust-1", claims.PartyID)
}

func TestSubscriptionsRecalcUsageRequiresCustomer(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "subscriptions", "recalc-usage")
	assert.Error(t, err)
}

func TestInvoicesCloseMonth(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.run(t, "pricing", "seed-default")
	require.NoError(t, err)

	now := time.Now().UTC()
	prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	_, err = e.backend.Billing.HandleFulfillmentEvent(ctx, fulfillment.Event{
		UnitID:         "unit-late",
		CustomerID:     "cust-1",
		ProducerID:     "prod-1",
		IsPhysical:     true,
		CreatedAt:      prev.Add(12 * time.Hour),
		TerminalStatus: fulfillment.StatusCompleted,
	})
	require.NoError(t, err)

	month := strconv.Itoa(int(prev.Month()))
	year := strconv.Itoa(prev.Year())

	out, err := e.run(t, "invoices", "close-month", "--month", month, "--year", year, "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "invoices=1")
	assert.Empty(t, e.st.AuditEvents(audit.EventTypePeriodClosed))

	out, err = e.run(t, "invoices", "close-month", "--month", month, "--year", year)
	require.NoError(t, err, out)
	assert.Contains(t, out, "invoices=1")
	require.Len(t, e.st.AuditEvents(audit.EventTypePeriodClosed), 1)

	out, err = e.run(t, "invoices", "close-month", "--month", month, "--year", year)
	require.NoError(t, err, out)
	assert.Contains(t, out, "invoices=0")
}

func TestInvoicesCloseMonthRejectsOpenMonth(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	_, err := e.run(t, "invoices", "close-month",
		"--month", strconv.Itoa(int(now.Month())), "--year", strconv.Itoa(now.Year()))
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)

	_, err = e.run(t, "invoices", "close-month", "--month", "13")
	assert.Error(t, err)
}
