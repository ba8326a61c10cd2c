// Package reconciliation matches transfer events between tracked wallets so
// that relocations under common ownership are never mistaken for disposals.
package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

// DefaultWindow is the matching window for self-transfer detection. Same
// transaction is the common case; the window accommodates multi-instruction
// transfers.
const DefaultWindow = 5 * time.Minute

// quantityTolerance absorbs unit-conversion rounding between the out and in
// legs of a transfer.
var quantityTolerance = decimal.New(1, -9)

// ExternalBucket returns the inventory key for quantity that left tracked
// custody toward the given counterparty.
func ExternalBucket(counterparty string) string {
	if counterparty == "" {
		counterparty = "unknown"
	}
	return "external:" + counterparty
}

// Reconciler annotates an ordered event stream with lot-move instructions.
type Reconciler struct {
	tracked          map[string]bool
	window           time.Duration
	externalTracking bool
}

// NewReconciler creates a reconciler for the tracked wallet set. When
// externalTracking is enabled, an unmatched transfer_in whose asset, quantity
// and counterparty match a prior out-of-scope move is annotated as a
// lot-move-in restoring the original cost base.
func NewReconciler(wallets []string, window time.Duration, externalTracking bool) *Reconciler {
	if window <= 0 {
		window = DefaultWindow
	}
	tracked := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		tracked[w] = true
	}
	return &Reconciler{tracked: tracked, window: window, externalTracking: externalTracking}
}

type outState struct {
	ev       *domain.NormalizedEvent
	matched  bool // consumed by a self-transfer match
	restored bool // consumed by an external restore
}

type inState struct {
	ev      *domain.NormalizedEvent
	matched bool
}

// Reconcile scans the ordered event stream and annotates transfer events in
// place. Matched out/in pairs become a single self lot-move; unmatched outs
// become out-of-scope moves to an external bucket; unmatched ins stay
// ordinary acquisitions unless external tracking restores them.
// Returned warnings cover ambiguity and out-of-scope moves.
//
// Within a timestamp the stream order is an ID tie-break, so a transfer_in
// can precede the transfer_out of the same transaction; matching is
// symmetric for equal timestamps.
func (r *Reconciler) Reconcile(events []*domain.NormalizedEvent) []domain.Warning {
	var warnings []domain.Warning
	pending := make(map[string][]*outState)   // asset -> ordered unmatched outs
	pendingIns := make(map[string][]*inState) // asset -> ordered unmatched ins

	for _, ev := range events {
		switch ev.Kind {
		case domain.KindTransferOut:
			st := &outState{ev: ev}
			if in := r.reverseMatch(pendingIns[ev.Asset], ev); in != nil {
				st.matched = true
				in.matched = true
				annotateSelf(st.ev, in.ev)
			}
			pending[ev.Asset] = append(pending[ev.Asset], st)

		case domain.KindTransferIn:
			if out, warn := r.selfMatch(pending[ev.Asset], ev); out != nil {
				out.matched = true
				annotateSelf(out.ev, ev)
				if warn != nil {
					warnings = append(warnings, *warn)
				}
				continue
			}
			if r.externalTracking {
				if out := r.restoreMatch(pending[ev.Asset], ev); out != nil {
					out.restored = true
					ev.Move = &domain.Move{
						Class:       domain.MoveExternalRestore,
						PeerEventID: out.ev.ID,
						FromWallet:  ExternalBucket(out.ev.Counterparty),
						ToWallet:    ev.Wallet,
					}
					continue
				}
			}
			pendingIns[ev.Asset] = append(pendingIns[ev.Asset], &inState{ev: ev})
		}
	}

	// Everything still unmatched left tracked custody.
	for _, states := range pending {
		for _, st := range states {
			if st.matched {
				continue
			}
			st.ev.Move = &domain.Move{
				Class:      domain.MoveExternalOut,
				FromWallet: st.ev.Wallet,
				ToWallet:   ExternalBucket(st.ev.Counterparty),
			}
			warnings = append(warnings, domain.Warning{
				Code:      domain.WarnUnmatchedTransferOut,
				EventID:   st.ev.ID,
				Wallet:    st.ev.Wallet,
				Asset:     st.ev.Asset,
				Timestamp: st.ev.Timestamp,
				Message:   fmt.Sprintf("transfer_out not matched to a tracked wallet; moved to %s", st.ev.Move.ToWallet),
			})
		}
	}
	return warnings
}

func annotateSelf(out, in *domain.NormalizedEvent) {
	out.Move = &domain.Move{
		Class:       domain.MoveSelf,
		PeerEventID: in.ID,
		FromWallet:  out.Wallet,
		ToWallet:    in.Wallet,
	}
	in.Move = &domain.Move{
		Class:       domain.MoveSelf,
		PeerEventID: out.ID,
		FromWallet:  out.Wallet,
		ToWallet:    in.Wallet,
	}
}

// reverseMatch finds the earliest unmatched transfer_in at the same
// timestamp as the out. Chronology forbids receiving before sending, so the
// reverse direction only exists inside a timestamp tie.
func (r *Reconciler) reverseMatch(ins []*inState, out *domain.NormalizedEvent) *inState {
	for _, st := range ins {
		in := st.ev
		if st.matched {
			continue
		}
		if !in.Timestamp.Equal(out.Timestamp) {
			continue
		}
		if in.Wallet == out.Wallet {
			continue
		}
		if out.Counterparty != "" && !r.tracked[out.Counterparty] {
			continue
		}
		if !quantitiesMatch(out.Quantity.Neg(), in.Quantity) {
			continue
		}
		return st
	}
	return nil
}

// selfMatch finds the earliest unmatched transfer_out compatible with the
// incoming transfer. When multiple candidates satisfy the window and quantity
// rule the earliest wins and an ambiguity warning is returned.
func (r *Reconciler) selfMatch(outs []*outState, in *domain.NormalizedEvent) (*outState, *domain.Warning) {
	var candidates []*outState
	for _, st := range outs {
		out := st.ev
		if st.matched || st.restored {
			continue
		}
		if out.Wallet == in.Wallet {
			continue
		}
		// A known counterparty outside the tracked set rules out a
		// self-transfer.
		if out.Counterparty != "" && !r.tracked[out.Counterparty] {
			continue
		}
		if in.Timestamp.Sub(out.Timestamp) > r.window {
			continue
		}
		if !quantitiesMatch(out.Quantity.Neg(), in.Quantity) {
			continue
		}
		candidates = append(candidates, st)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	var warn *domain.Warning
	if len(candidates) > 1 {
		warn = &domain.Warning{
			Code:      domain.WarnAmbiguousTransferMatch,
			EventID:   in.ID,
			Wallet:    in.Wallet,
			Asset:     in.Asset,
			Timestamp: in.Timestamp,
			Message:   fmt.Sprintf("%d transfer_out candidates matched; earliest selected", len(candidates)),
		}
	}
	return candidates[0], warn
}

// restoreMatch finds a prior out-of-scope move with matching asset, quantity
// and counterparty. Only outs that can no longer self-match are eligible.
func (r *Reconciler) restoreMatch(outs []*outState, in *domain.NormalizedEvent) *outState {
	for _, st := range outs {
		out := st.ev
		if st.matched || st.restored {
			continue
		}
		if in.Timestamp.Sub(out.Timestamp) <= r.window {
			// Still inside the self-transfer window; not yet external.
			continue
		}
		if normalizeCounterparty(out.Counterparty) != normalizeCounterparty(in.Counterparty) {
			continue
		}
		if !quantitiesMatch(out.Quantity.Neg(), in.Quantity) {
			continue
		}
		return st
	}
	return nil
}

func quantitiesMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(quantityTolerance)
}

func normalizeCounterparty(c string) string {
	if c == "" {
		return "unknown"
	}
	return c
}
