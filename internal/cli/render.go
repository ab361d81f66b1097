package cli

import (
	"fmt"
	"strings"

	"settlement-platform/internal/invoice"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/reporting"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	accent = lipgloss.Color("#0EA5E9")
	dim    = lipgloss.Color("#6B7280")
	good   = lipgloss.Color("#22C55E")
	bad    = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(26)
	valueStyle = lipgloss.NewStyle().Align(lipgloss.Right).Width(16)
	okStyle    = lipgloss.NewStyle().Foreground(good)
	errStyle   = lipgloss.NewStyle().Foreground(bad).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

func row(label string, v decimal.Decimal) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(v.StringFixed(2)))
}

func countRow(label string, n int) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(n)))
}

func section(title string, rows ...string) string {
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{titleStyle.Render(title)}, rows...)...)
}

func renderFinancial(s reporting.FinancialSummary) string {
	header := titleStyle.Render(fmt.Sprintf("Financial summary %s .. %s (%s)",
		s.Range.From.Format("2006-01-02"), s.Range.To.Format("2006-01-02"), s.Currency))

	customers := section("Customers",
		countRow("invoices", s.Customers.Invoices),
		row("physical", s.Customers.Physical),
		row("digital", s.Customers.Digital),
		row("monthly fees", s.Customers.MonthlyFees),
		row("packages", s.Customers.Packages),
		row("total revenue", s.Customers.Total),
		row("tax", s.Customers.Tax),
	)
	producers := section("Producers",
		countRow("invoices", s.Producers.Invoices),
		row("gross", s.Producers.Gross),
		row("commission", s.Producers.Commission),
		row("card fees", s.Producers.CardFees),
		row("net to producers", s.Producers.Net),
	)
	totals := section("Platform",
		row("collected", s.Collected),
		row("outstanding", s.Outstanding),
		countRow("cancelled invoices", s.Cancelled),
		row("net platform earnings", s.NetPlatformEarnings),
	)
	body := lipgloss.JoinVertical(lipgloss.Left, header, "", customers, "", producers, "", totals)
	return boxStyle.Render(body) + "\n"
}

func renderPricing(c pricing.Configuration) string {
	state := errStyle.Render("inactive")
	if c.Active {
		state = okStyle.Render("active")
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("%s  %s", c.Name, state)),
		lipgloss.NewStyle().Foreground(dim).Render(c.ID),
		row("physical unit price", c.PhysicalUnitPrice),
		row("digital unit price", c.DigitalUnitPrice),
		row("monthly fee", c.MonthlyFee),
		row("commission rate %", c.CommissionRate),
		row("card fee rate %", c.CardFeeRate),
		row("tax rate %", c.TaxRate),
	)
	return boxStyle.Render(body) + "\n"
}

func renderInvoices(invs []invoice.Invoice) string {
	if len(invs) == 0 {
		return lipgloss.NewStyle().Foreground(dim).Render("no invoices") + "\n"
	}
	numW := lipgloss.NewStyle().Width(20)
	typeW := lipgloss.NewStyle().Width(18)
	partyW := lipgloss.NewStyle().Width(24)
	var b strings.Builder
	for _, inv := range invs {
		party := inv.CustomerID
		if inv.Type == invoice.TypeProducer {
			party = inv.ProducerID
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			numW.Render(inv.Number),
			typeW.Render(string(inv.Type)),
			partyW.Render(party),
			valueStyle.Render(inv.Gross.StringFixed(2)),
			" "+string(inv.Status),
		))
		b.WriteString("\n")
	}
	return b.String()
}
