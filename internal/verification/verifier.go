// Package verification checks that accounting runs are reproducible: the same
// raw input set and configuration must yield byte-for-byte identical reports.
package verification

import (
	"fmt"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/reporting"
)

// FieldDivergence represents a mismatch between a baseline and a rerun value.
type FieldDivergence struct {
	Field    string      // field path, e.g. Disposals[0].GainAUD
	Expected interface{} // baseline value
	Actual   interface{} // rerun value
}

// Result contains the outcome of a determinism check.
type Result struct {
	Runs        int  // total pipeline executions, baseline included
	Match       bool // true when every rerun matched the baseline
	Divergences []FieldDivergence
}

// CompareReports compares two generated reports field by field and returns
// the divergences. Monetary values are compared by decimal value, not string
// representation. GeneratedAt is excluded: it is wall-clock, not derived from
// the input.
func CompareReports(baseline, rerun *reporting.Report) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if baseline.Method != rerun.Method {
		add("Method", baseline.Method, rerun.Method)
	}
	if baseline.FinancialYear != rerun.FinancialYear {
		add("FinancialYear", baseline.FinancialYear, rerun.FinancialYear)
	}

	if len(baseline.Disposals) != len(rerun.Disposals) {
		add("Disposals", len(baseline.Disposals), len(rerun.Disposals))
	} else {
		for i := range baseline.Disposals {
			divergences = append(divergences, compareDisposal(i, baseline.Disposals[i], rerun.Disposals[i])...)
		}
	}

	if len(baseline.LotMoves) != len(rerun.LotMoves) {
		add("LotMoves", len(baseline.LotMoves), len(rerun.LotMoves))
	} else {
		for i := range baseline.LotMoves {
			a, b := baseline.LotMoves[i], rerun.LotMoves[i]
			prefix := fmt.Sprintf("LotMoves[%d]", i)
			if a.EventID != b.EventID {
				add(prefix+".EventID", a.EventID, b.EventID)
			}
			if a.Class != b.Class {
				add(prefix+".Class", a.Class, b.Class)
			}
			if a.FromWallet != b.FromWallet || a.ToWallet != b.ToWallet {
				add(prefix+".Wallets", a.FromWallet+"->"+a.ToWallet, b.FromWallet+"->"+b.ToWallet)
			}
		}
	}

	if len(baseline.OpenLots) != len(rerun.OpenLots) {
		add("OpenLots", len(baseline.OpenLots), len(rerun.OpenLots))
	} else {
		for i := range baseline.OpenLots {
			a, b := baseline.OpenLots[i], rerun.OpenLots[i]
			prefix := fmt.Sprintf("OpenLots[%d]", i)
			if a.ID != b.ID {
				add(prefix+".ID", a.ID, b.ID)
			}
			if !a.QtyRemaining.Equal(b.QtyRemaining) {
				add(prefix+".QtyRemaining", a.QtyRemaining, b.QtyRemaining)
			}
			if !a.UnitCostAUD.Equal(b.UnitCostAUD) {
				add(prefix+".UnitCostAUD", a.UnitCostAUD, b.UnitCostAUD)
			}
			if !a.AcquiredAt.Equal(b.AcquiredAt) {
				add(prefix+".AcquiredAt", a.AcquiredAt, b.AcquiredAt)
			}
		}
	}

	if len(baseline.Warnings) != len(rerun.Warnings) {
		add("Warnings", len(baseline.Warnings), len(rerun.Warnings))
	} else {
		for i := range baseline.Warnings {
			if baseline.Warnings[i].Code != rerun.Warnings[i].Code ||
				baseline.Warnings[i].EventID != rerun.Warnings[i].EventID {
				add(fmt.Sprintf("Warnings[%d]", i),
					baseline.Warnings[i].Code, rerun.Warnings[i].Code)
			}
		}
	}

	divergences = append(divergences, compareSummary("Overall", baseline.Overall, rerun.Overall)...)
	return divergences
}

func compareDisposal(i int, a, b *domain.Disposal) []FieldDivergence {
	var divergences []FieldDivergence
	prefix := fmt.Sprintf("Disposals[%d]", i)
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: prefix + "." + field, Expected: expected, Actual: actual})
	}

	if a.EventID != b.EventID {
		add("EventID", a.EventID, b.EventID)
	}
	if a.Wallet != b.Wallet {
		add("Wallet", a.Wallet, b.Wallet)
	}
	if a.Asset != b.Asset {
		add("Asset", a.Asset, b.Asset)
	}
	if !a.DisposedAt.Equal(b.DisposedAt) {
		add("DisposedAt", a.DisposedAt, b.DisposedAt)
	}
	if !a.Quantity.Equal(b.Quantity) {
		add("Quantity", a.Quantity, b.Quantity)
	}
	if !a.ProceedsAUD.Equal(b.ProceedsAUD) {
		add("ProceedsAUD", a.ProceedsAUD, b.ProceedsAUD)
	}
	if !a.CostBaseAUD.Equal(b.CostBaseAUD) {
		add("CostBaseAUD", a.CostBaseAUD, b.CostBaseAUD)
	}
	if !a.FeesAUD.Equal(b.FeesAUD) {
		add("FeesAUD", a.FeesAUD, b.FeesAUD)
	}
	if !a.GainAUD.Equal(b.GainAUD) {
		add("GainAUD", a.GainAUD, b.GainAUD)
	}
	if a.HeldDays != b.HeldDays {
		add("HeldDays", a.HeldDays, b.HeldDays)
	}
	if a.DiscountEligible != b.DiscountEligible {
		add("DiscountEligible", a.DiscountEligible, b.DiscountEligible)
	}
	if a.Unpriced != b.Unpriced {
		add("Unpriced", a.Unpriced, b.Unpriced)
	}
	if len(a.MatchedLots) != len(b.MatchedLots) {
		add("MatchedLots", len(a.MatchedLots), len(b.MatchedLots))
	} else {
		for j := range a.MatchedLots {
			if a.MatchedLots[j].LotID != b.MatchedLots[j].LotID ||
				!a.MatchedLots[j].Quantity.Equal(b.MatchedLots[j].Quantity) {
				add(fmt.Sprintf("MatchedLots[%d]", j), a.MatchedLots[j].LotID, b.MatchedLots[j].LotID)
			}
		}
	}
	return divergences
}

func compareSummary(prefix string, a, b reporting.Summary) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: prefix + "." + field, Expected: expected, Actual: actual})
	}

	if a.Disposals != b.Disposals {
		add("Disposals", a.Disposals, b.Disposals)
	}
	if !a.ProceedsAUD.Equal(b.ProceedsAUD) {
		add("ProceedsAUD", a.ProceedsAUD, b.ProceedsAUD)
	}
	if !a.CostBaseAUD.Equal(b.CostBaseAUD) {
		add("CostBaseAUD", a.CostBaseAUD, b.CostBaseAUD)
	}
	if !a.FeesAUD.Equal(b.FeesAUD) {
		add("FeesAUD", a.FeesAUD, b.FeesAUD)
	}
	if !a.GainAUD.Equal(b.GainAUD) {
		add("GainAUD", a.GainAUD, b.GainAUD)
	}
	if !a.DiscountEligibleGainAUD.Equal(b.DiscountEligibleGainAUD) {
		add("DiscountEligibleGainAUD", a.DiscountEligibleGainAUD, b.DiscountEligibleGainAUD)
	}
	if a.UnpricedDisposals != b.UnpricedDisposals {
		add("UnpricedDisposals", a.UnpricedDisposals, b.UnpricedDisposals)
	}
	return divergences
}
