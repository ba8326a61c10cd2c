package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-cgt/internal/domain"
)

const csvTimeLayout = time.RFC3339

// RenderDisposalsCSV renders disposal records as a CSV string.
func RenderDisposalsCSV(disposals []*domain.Disposal) string {
	var sb strings.Builder

	sb.WriteString("event_id,wallet,asset,symbol,disposed_at,quantity,")
	sb.WriteString("proceeds_aud,cost_base_aud,fees_aud,gain_aud,")
	sb.WriteString("held_days,discount_eligible,unpriced,method\n")

	for _, d := range disposals {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d,%t,%t,%s\n",
			d.EventID,
			d.Wallet,
			d.Asset,
			d.Symbol,
			d.DisposedAt.Format(csvTimeLayout),
			d.Quantity.String(),
			d.ProceedsAUD.String(),
			d.CostBaseAUD.String(),
			d.FeesAUD.String(),
			d.GainAUD.String(),
			d.HeldDays,
			d.DiscountEligible,
			d.Unpriced,
			d.Method,
		))
	}

	return sb.String()
}

// RenderOpenLotsCSV renders remaining open inventory as a CSV string.
func RenderOpenLotsCSV(lots []*domain.Lot) string {
	var sb strings.Builder

	sb.WriteString("lot_id,wallet,asset,symbol,acquired_at,qty_acquired,qty_remaining,")
	sb.WriteString("unit_cost_aud,fees_aud,unpriced,origin,source_event\n")

	for _, l := range lots {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%t,%s,%s\n",
			l.ID,
			l.Wallet,
			l.Asset,
			l.Symbol,
			l.AcquiredAt.Format(csvTimeLayout),
			l.QtyAcquired.String(),
			l.QtyRemaining.String(),
			l.UnitCostAUD.String(),
			l.FeesAUD.String(),
			l.Unpriced,
			l.Origin,
			l.SourceEvent,
		))
	}

	return sb.String()
}

// RenderAssetSummariesCSV renders per-asset summaries as a CSV string.
func RenderAssetSummariesCSV(summaries []AssetSummary) string {
	var sb strings.Builder

	sb.WriteString("asset,symbol,disposals,proceeds_aud,cost_base_aud,fees_aud,")
	sb.WriteString("gain_aud,discount_eligible_gain_aud,unpriced_disposals\n")

	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,%s,%d\n",
			s.Asset,
			s.Symbol,
			s.Disposals,
			s.ProceedsAUD.String(),
			s.CostBaseAUD.String(),
			s.FeesAUD.String(),
			s.GainAUD.String(),
			s.DiscountEligibleGainAUD.String(),
			s.UnpricedDisposals,
		))
	}

	return sb.String()
}

// RenderWalletSummariesCSV renders per-wallet summaries as a CSV string.
func RenderWalletSummariesCSV(summaries []WalletSummary) string {
	var sb strings.Builder

	sb.WriteString("wallet,disposals,proceeds_aud,cost_base_aud,fees_aud,")
	sb.WriteString("gain_aud,discount_eligible_gain_aud,unpriced_disposals\n")

	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s,%s,%s,%d\n",
			s.Wallet,
			s.Disposals,
			s.ProceedsAUD.String(),
			s.CostBaseAUD.String(),
			s.FeesAUD.String(),
			s.GainAUD.String(),
			s.DiscountEligibleGainAUD.String(),
			s.UnpricedDisposals,
		))
	}

	return sb.String()
}

// RenderWarningsCSV renders run warnings as a CSV string. Messages are
// quoted: they are the only free-text column.
func RenderWarningsCSV(warnings []domain.Warning) string {
	var sb strings.Builder

	sb.WriteString("code,event_id,wallet,asset,timestamp,message\n")

	for _, w := range warnings {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%q\n",
			w.Code,
			w.EventID,
			w.Wallet,
			w.Asset,
			w.Timestamp.Format(csvTimeLayout),
			w.Message,
		))
	}

	return sb.String()
}
