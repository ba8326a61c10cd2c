package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

var baseTime = time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func transferOut(id, wallet, counterparty, qty string, ts time.Time) *domain.NormalizedEvent {
	return &domain.NormalizedEvent{
		ID:           id,
		Wallet:       wallet,
		Timestamp:    ts,
		Kind:         domain.KindTransferOut,
		Asset:        "mintX",
		Quantity:     dec(qty).Neg(),
		Counterparty: counterparty,
	}
}

func transferIn(id, wallet, counterparty, qty string, ts time.Time) *domain.NormalizedEvent {
	return &domain.NormalizedEvent{
		ID:           id,
		Wallet:       wallet,
		Timestamp:    ts,
		Kind:         domain.KindTransferIn,
		Asset:        "mintX",
		Quantity:     dec(qty),
		Counterparty: counterparty,
	}
}

func TestReconcile_SelfTransfer(t *testing.T) {
	out := transferOut("evOut", "walletA", "walletB", "5", baseTime)
	in := transferIn("evIn", "walletB", "walletA", "5", baseTime.Add(time.Minute))

	r := NewReconciler([]string{"walletA", "walletB"}, 0, false)
	warnings := r.Reconcile([]*domain.NormalizedEvent{out, in})

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if out.Move == nil || out.Move.Class != domain.MoveSelf || out.Move.PeerEventID != "evIn" {
		t.Errorf("out annotation: %+v", out.Move)
	}
	if in.Move == nil || in.Move.Class != domain.MoveSelf || in.Move.PeerEventID != "evOut" {
		t.Errorf("in annotation: %+v", in.Move)
	}
	if out.Move.FromWallet != "walletA" || out.Move.ToWallet != "walletB" {
		t.Errorf("move endpoints: %+v", out.Move)
	}
}

func TestReconcile_InBeforeOutSameTimestamp(t *testing.T) {
	// Within one transaction both legs share the block time and stream order
	// is an ID tie-break, so the in can arrive first.
	in := transferIn("evIn", "walletB", "walletA", "5", baseTime)
	out := transferOut("evOut", "walletA", "walletB", "5", baseTime)

	r := NewReconciler([]string{"walletA", "walletB"}, 0, false)
	warnings := r.Reconcile([]*domain.NormalizedEvent{in, out})

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if out.Move == nil || out.Move.Class != domain.MoveSelf {
		t.Errorf("out annotation: %+v", out.Move)
	}
	if in.Move == nil || in.Move.Class != domain.MoveSelf {
		t.Errorf("in annotation: %+v", in.Move)
	}
}

func TestReconcile_AmbiguousMatchPicksEarliest(t *testing.T) {
	out1 := transferOut("evOut1", "walletA", "", "5", baseTime)
	out2 := transferOut("evOut2", "walletC", "", "5", baseTime.Add(time.Minute))
	in := transferIn("evIn", "walletB", "", "5", baseTime.Add(2*time.Minute))

	r := NewReconciler([]string{"walletA", "walletB", "walletC"}, 0, false)
	warnings := r.Reconcile([]*domain.NormalizedEvent{out1, out2, in})

	if in.Move == nil || in.Move.PeerEventID != "evOut1" {
		t.Errorf("expected earliest out selected, got %+v", in.Move)
	}

	var ambiguous, unmatched int
	for _, w := range warnings {
		switch w.Code {
		case domain.WarnAmbiguousTransferMatch:
			ambiguous++
		case domain.WarnUnmatchedTransferOut:
			unmatched++
		}
	}
	if ambiguous != 1 {
		t.Errorf("expected 1 ambiguity warning, got %d", ambiguous)
	}
	// The losing out still left tracked custody.
	if unmatched != 1 || out2.Move == nil || out2.Move.Class != domain.MoveExternalOut {
		t.Errorf("losing out: warnings=%d move=%+v", unmatched, out2.Move)
	}
}

func TestReconcile_UnmatchedOutGoesExternal(t *testing.T) {
	out := transferOut("evOut", "walletA", "exchange1", "5", baseTime)

	r := NewReconciler([]string{"walletA"}, 0, false)
	warnings := r.Reconcile([]*domain.NormalizedEvent{out})

	if out.Move == nil || out.Move.Class != domain.MoveExternalOut {
		t.Fatalf("expected external move, got %+v", out.Move)
	}
	if out.Move.ToWallet != "external:exchange1" {
		t.Errorf("bucket: got %s", out.Move.ToWallet)
	}
	if len(warnings) != 1 || warnings[0].Code != domain.WarnUnmatchedTransferOut {
		t.Errorf("warnings: %+v", warnings)
	}
}

func TestReconcile_UnknownCounterpartyBucket(t *testing.T) {
	out := transferOut("evOut", "walletA", "", "5", baseTime)

	r := NewReconciler([]string{"walletA"}, 0, false)
	r.Reconcile([]*domain.NormalizedEvent{out})

	if out.Move == nil || out.Move.ToWallet != "external:unknown" {
		t.Errorf("bucket: %+v", out.Move)
	}
}

func TestReconcile_UntrackedCounterpartyNeverSelfMatches(t *testing.T) {
	// The out names a counterparty outside the tracked set, so the in from
	// another tracked wallet must not pair with it.
	out := transferOut("evOut", "walletA", "exchange1", "5", baseTime)
	in := transferIn("evIn", "walletB", "", "5", baseTime.Add(time.Minute))

	r := NewReconciler([]string{"walletA", "walletB"}, 0, false)
	r.Reconcile([]*domain.NormalizedEvent{out, in})

	if in.Move != nil {
		t.Errorf("in should stay an ordinary acquisition, got %+v", in.Move)
	}
	if out.Move == nil || out.Move.Class != domain.MoveExternalOut {
		t.Errorf("out: %+v", out.Move)
	}
}

func TestReconcile_WindowExpiry(t *testing.T) {
	out := transferOut("evOut", "walletA", "", "5", baseTime)
	in := transferIn("evIn", "walletB", "", "5", baseTime.Add(DefaultWindow+time.Second))

	r := NewReconciler([]string{"walletA", "walletB"}, 0, false)
	r.Reconcile([]*domain.NormalizedEvent{out, in})

	if in.Move != nil {
		t.Errorf("in outside the window must not match, got %+v", in.Move)
	}
}

func TestReconcile_ExternalRestore(t *testing.T) {
	out := transferOut("evOut", "walletA", "exchange1", "5", baseTime)
	in := transferIn("evIn", "walletA", "exchange1", "5", baseTime.Add(24*time.Hour))

	r := NewReconciler([]string{"walletA"}, 0, true)
	warnings := r.Reconcile([]*domain.NormalizedEvent{out, in})

	if in.Move == nil || in.Move.Class != domain.MoveExternalRestore {
		t.Fatalf("expected restore, got %+v", in.Move)
	}
	if in.Move.FromWallet != "external:exchange1" || in.Move.ToWallet != "walletA" {
		t.Errorf("restore endpoints: %+v", in.Move)
	}
	if in.Move.PeerEventID != "evOut" {
		t.Errorf("peer: got %s", in.Move.PeerEventID)
	}

	// The out still carries its out-of-scope warning; the restore does not
	// erase the custody gap.
	if len(warnings) != 1 || warnings[0].Code != domain.WarnUnmatchedTransferOut {
		t.Errorf("warnings: %+v", warnings)
	}
}

func TestReconcile_RestoreRequiresTracking(t *testing.T) {
	out := transferOut("evOut", "walletA", "exchange1", "5", baseTime)
	in := transferIn("evIn", "walletA", "exchange1", "5", baseTime.Add(24*time.Hour))

	r := NewReconciler([]string{"walletA"}, 0, false)
	r.Reconcile([]*domain.NormalizedEvent{out, in})

	if in.Move != nil {
		t.Errorf("restore disabled, in should stay plain: %+v", in.Move)
	}
}

func TestReconcile_QuantityTolerance(t *testing.T) {
	out := transferOut("evOut", "walletA", "walletB", "5.000000001", baseTime)
	in := transferIn("evIn", "walletB", "walletA", "5", baseTime.Add(time.Minute))

	r := NewReconciler([]string{"walletA", "walletB"}, 0, false)
	r.Reconcile([]*domain.NormalizedEvent{out, in})

	if out.Move == nil || out.Move.Class != domain.MoveSelf {
		t.Errorf("rounding inside tolerance should match: %+v", out.Move)
	}

	farOut := transferOut("evOut2", "walletA", "walletB", "5.1", baseTime)
	farIn := transferIn("evIn2", "walletB", "walletA", "5", baseTime.Add(time.Minute))
	r.Reconcile([]*domain.NormalizedEvent{farOut, farIn})
	if farOut.Move != nil && farOut.Move.Class == domain.MoveSelf {
		t.Errorf("0.1 difference must not match: %+v", farOut.Move)
	}
}
