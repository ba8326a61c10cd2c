package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// formatAUD renders a cent-rounded AUD value with currency formatting.
func formatAUD(v decimal.Decimal) string {
	return money.New(v.Mul(hundred).Round(0).IntPart(), money.AUD).Display()
}

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Capital Gains Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Method: %s\n\n", r.Method))
	if r.FinancialYear != "" {
		sb.WriteString(fmt.Sprintf("Financial year: %s\n\n", r.FinancialYear))
	} else {
		sb.WriteString("Financial year: all history\n\n")
	}
	if len(r.Wallets) > 0 {
		sb.WriteString(fmt.Sprintf("Wallets: %s\n\n", strings.Join(r.Wallets, ", ")))
	}

	sb.WriteString("## Overall\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Disposals | %d |\n", r.Overall.Disposals))
	sb.WriteString(fmt.Sprintf("| Proceeds | %s |\n", formatAUD(r.Overall.ProceedsAUD)))
	sb.WriteString(fmt.Sprintf("| Cost base | %s |\n", formatAUD(r.Overall.CostBaseAUD)))
	sb.WriteString(fmt.Sprintf("| Fees in cost base | %s |\n", formatAUD(r.Overall.FeesAUD)))
	sb.WriteString(fmt.Sprintf("| Net gain/loss | %s |\n", formatAUD(r.Overall.GainAUD)))
	sb.WriteString(fmt.Sprintf("| Discount-eligible gains | %s |\n", formatAUD(r.Overall.DiscountEligibleGainAUD)))
	sb.WriteString(fmt.Sprintf("| Unpriced disposals | %d |\n", r.Overall.UnpricedDisposals))
	sb.WriteString("\n")

	sb.WriteString("## By Asset\n\n")
	if len(r.AssetSummaries) > 0 {
		sb.WriteString("| Asset | Symbol | Disposals | Proceeds | Cost Base | Gain/Loss | Discount-Eligible |\n")
		sb.WriteString("|-------|--------|-----------|----------|-----------|-----------|-------------------|\n")
		for _, s := range r.AssetSummaries {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %s |\n",
				s.Asset, s.Symbol, s.Disposals,
				formatAUD(s.ProceedsAUD), formatAUD(s.CostBaseAUD),
				formatAUD(s.GainAUD), formatAUD(s.DiscountEligibleGainAUD)))
		}
	} else {
		sb.WriteString("No disposals in period.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## By Wallet\n\n")
	if len(r.WalletSummaries) > 0 {
		sb.WriteString("| Wallet | Disposals | Proceeds | Cost Base | Gain/Loss | Discount-Eligible |\n")
		sb.WriteString("|--------|-----------|----------|-----------|-----------|-------------------|\n")
		for _, s := range r.WalletSummaries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
				s.Wallet, s.Disposals,
				formatAUD(s.ProceedsAUD), formatAUD(s.CostBaseAUD),
				formatAUD(s.GainAUD), formatAUD(s.DiscountEligibleGainAUD)))
		}
	} else {
		sb.WriteString("No disposals in period.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Disposals\n\n")
	if len(r.Disposals) > 0 {
		sb.WriteString("| Date | Wallet | Asset | Qty | Proceeds | Cost Base | Gain/Loss | Held Days | Eligible |\n")
		sb.WriteString("|------|--------|-------|-----|----------|-----------|-----------|-----------|----------|\n")
		for _, d := range r.Disposals {
			eligible := ""
			if d.DiscountEligible {
				eligible = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %d | %s |\n",
				d.DisposedAt.Format("2006-01-02"), d.Wallet, assetLabel(d.Asset, d.Symbol),
				d.Quantity.String(), formatAUD(d.ProceedsAUD), formatAUD(d.CostBaseAUD),
				formatAUD(d.GainAUD), d.HeldDays, eligible))
		}
	} else {
		sb.WriteString("No disposals in period.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Lot Moves\n\n")
	if len(r.LotMoves) > 0 {
		sb.WriteString("| Date | From | To | Asset | Qty | Class |\n")
		sb.WriteString("|------|------|----|-------|-----|-------|\n")
		for _, m := range r.LotMoves {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				m.Timestamp.Format("2006-01-02"), m.FromWallet, m.ToWallet,
				assetLabel(m.Asset, m.Symbol), m.Quantity.String(), m.Class))
		}
	} else {
		sb.WriteString("No lot moves in period.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Open Lots\n\n")
	if len(r.OpenLots) > 0 {
		sb.WriteString("| Acquired | Wallet | Asset | Remaining | Unit Cost | Origin |\n")
		sb.WriteString("|----------|--------|-------|-----------|-----------|--------|\n")
		for _, l := range r.OpenLots {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				l.AcquiredAt.Format("2006-01-02"), l.Wallet, assetLabel(l.Asset, l.Symbol),
				l.QtyRemaining.String(), formatAUD(l.UnitCostAUD), l.Origin))
		}
	} else {
		sb.WriteString("No open inventory.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Warnings\n\n")
	if len(r.Warnings) > 0 {
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- **%s** %s\n", w.Code, w.Message))
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func assetLabel(asset, symbol string) string {
	if symbol != "" {
		return symbol
	}
	return asset
}
