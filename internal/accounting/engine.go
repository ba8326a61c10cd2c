package accounting

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/idhash"
	"solana-cgt/internal/pricing"
)

// DefaultLongTermDays is the holding period threshold for discount
// eligibility. The discount itself is applied downstream, not here.
const DefaultLongTermDays = 365

// RunResult collects everything a run emits. Disposals and lot moves are
// immutable once emitted.
type RunResult struct {
	Disposals []*domain.Disposal
	LotMoves  []*domain.LotMove
	Warnings  []domain.Warning
	OpenLots  []*domain.Lot

	// LotErrors holds Specific-ID disposals that could not be satisfied.
	// Each failed disposal leaves the ledger untouched; processing continues
	// for subsequent events.
	LotErrors []error
}

// Engine is the lot ledger state machine. It consumes the deterministically
// ordered, annotated event sequence in a single sequential pass; no
// concurrency is permitted over the same ledger.
type Engine struct {
	strategy     MatchingStrategy
	prices       pricing.Provider
	ledger       *Ledger
	longTermDays int
	logger       *log.Logger
}

// NewEngine creates an engine with a fresh ledger for one computation run.
func NewEngine(strategy MatchingStrategy, prices pricing.Provider, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		strategy:     strategy,
		prices:       prices,
		ledger:       NewLedger(),
		longTermDays: DefaultLongTermDays,
		logger:       logger,
	}
}

// WithLongTermDays overrides the discount eligibility threshold.
func (e *Engine) WithLongTermDays(days int) *Engine {
	e.longTermDays = days
	return e
}

// Process applies the ordered event stream to the ledger and returns the
// emitted records. A single unpriceable or short event degrades to a
// warning; only configuration and invariant failures abort the run.
func (e *Engine) Process(ctx context.Context, events []*domain.NormalizedEvent) (*RunResult, error) {
	res := &RunResult{}
	for _, ev := range events {
		var err error
		switch domain.Classify(ev) {
		case domain.TreatAcquisition:
			err = e.applyAcquisition(ctx, ev, res)
		case domain.TreatDisposal:
			err = e.applyDisposal(ctx, ev, res)
		case domain.TreatLotMove:
			err = e.applyMove(ctx, ev, res)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	res.OpenLots = e.ledger.openLots()
	return res, nil
}

// resolveFee converts the event's network fee to AUD. An unavailable SOL
// price degrades the fee to zero, matching the unpriced-event policy.
func (e *Engine) resolveFee(ctx context.Context, ev *domain.NormalizedEvent) decimal.Decimal {
	if ev.FeeSOL.IsZero() {
		return decimal.Zero
	}
	price, err := e.prices.PriceAUD(ctx, domain.SOLMint, ev.Timestamp)
	if err != nil {
		return decimal.Zero
	}
	return domain.QuantizeAUD(ev.FeeSOL.Mul(price))
}

// resolveValue returns the AUD value of the event's quantity, preferring the
// transaction-implied valuation hint over a spot lookup. The second return
// is false when no price could be resolved.
func (e *Engine) resolveValue(ctx context.Context, ev *domain.NormalizedEvent, qty decimal.Decimal) (decimal.Decimal, bool) {
	if ev.ValuationHint.Valid {
		return ev.ValuationHint.Decimal, true
	}
	price, err := e.prices.PriceAUD(ctx, ev.Asset, ev.Timestamp)
	if err != nil {
		return decimal.Zero, false
	}
	return domain.QuantizeAUD(price.Mul(qty)), true
}

func (e *Engine) warnUnpriced(ev *domain.NormalizedEvent, res *RunResult) {
	res.Warnings = append(res.Warnings, domain.Warning{
		Code:      domain.WarnUnpricedEvent,
		EventID:   ev.ID,
		Wallet:    ev.Wallet,
		Asset:     ev.Asset,
		Timestamp: ev.Timestamp,
		Message:   fmt.Sprintf("no valuation hint and no price for %s at %s", ev.Asset, ev.Timestamp.Format("2006-01-02T15:04:05Z")),
	})
}

func (e *Engine) applyAcquisition(ctx context.Context, ev *domain.NormalizedEvent, res *RunResult) error {
	qty := ev.Quantity
	if !qty.IsPositive() {
		return nil
	}
	totalCost, priced := e.resolveValue(ctx, ev, qty)
	if !priced {
		e.warnUnpriced(ev, res)
	}
	unitCost := decimal.Zero
	if priced {
		unitCost = totalCost.Div(qty)
	}
	seq := e.ledger.nextSeq(ev.Wallet, ev.Asset)
	e.ledger.add(&domain.Lot{
		ID:           idhash.ComputeLotID(ev.Wallet, ev.Asset, seq),
		Seq:          seq,
		Wallet:       ev.Wallet,
		Asset:        ev.Asset,
		Symbol:       ev.Symbol,
		AcquiredAt:   ev.Timestamp,
		QtyAcquired:  qty,
		QtyRemaining: qty,
		UnitCostAUD:  unitCost,
		FeesAUD:      e.resolveFee(ctx, ev),
		Unpriced:     !priced,
		Origin:       domain.OriginAcquisition,
		SourceEvent:  ev.ID,
	})
	return e.ledger.checkConservation(ev.Wallet, ev.Asset)
}

func (e *Engine) applyDisposal(ctx context.Context, ev *domain.NormalizedEvent, res *RunResult) error {
	qty := ev.Quantity.Abs()
	if qty.IsZero() {
		return nil
	}
	proceeds, priced := e.resolveValue(ctx, ev, qty)
	if !priced {
		e.warnUnpriced(ev, res)
	}
	if priced {
		// The disposal's own network fee reduces proceeds.
		proceeds = proceeds.Sub(e.resolveFee(ctx, ev))
	}

	plan, err := e.strategy.SelectLots(ev.ID, e.ledger.open(ev.Wallet, ev.Asset), qty)
	if err != nil {
		var insufficient *InsufficientSpecificLotError
		if errors.As(err, &insufficient) {
			e.logger.Printf("accounting: %v", err)
			res.LotErrors = append(res.LotErrors, err)
			return nil
		}
		return err
	}
	plan = e.coverShortfall(ev, qty, plan, res)

	costBase := decimal.Zero
	feesShare := decimal.Zero
	lotUnpriced := false
	heldDays := -1
	matched := make([]domain.LotConsumption, 0, len(plan))
	for _, al := range plan {
		e.ledger.consume(al.Lot, al.Quantity)
		feeShare := decimal.Zero
		if al.Lot.FeesAUD.IsPositive() && al.Lot.QtyAcquired.IsPositive() {
			feeShare = al.Lot.FeesAUD.Mul(al.Quantity).Div(al.Lot.QtyAcquired)
		}
		costBase = costBase.Add(al.Lot.UnitCostAUD.Mul(al.Quantity)).Add(feeShare)
		feesShare = feesShare.Add(feeShare)
		lotUnpriced = lotUnpriced || al.Lot.Unpriced
		if d := domain.HoldingPeriodDays(al.Lot.AcquiredAt, ev.Timestamp); heldDays < 0 || d < heldDays {
			heldDays = d
		}
		matched = append(matched, domain.LotConsumption{LotID: al.Lot.ID, Quantity: al.Quantity})
	}
	costBase = domain.QuantizeAUD(costBase)

	res.Disposals = append(res.Disposals, &domain.Disposal{
		EventID:          ev.ID,
		Wallet:           ev.Wallet,
		Asset:            ev.Asset,
		Symbol:           ev.Symbol,
		DisposedAt:       ev.Timestamp,
		Quantity:         qty,
		ProceedsAUD:      domain.QuantizeAUD(proceeds),
		CostBaseAUD:      costBase,
		FeesAUD:          domain.QuantizeAUD(feesShare),
		GainAUD:          domain.QuantizeAUD(proceeds.Sub(costBase)),
		HeldDays:         heldDays,
		DiscountEligible: heldDays >= e.longTermDays,
		Unpriced:         !priced || lotUnpriced,
		Method:           e.strategy.Name(),
		MatchedLots:      matched,
	})
	return e.ledger.checkConservation(ev.Wallet, ev.Asset)
}

// coverShortfall backfills a zero-cost lot when open inventory cannot cover
// the quantity, covering unrecorded or pre-history inflows. The run never
// aborts on this condition.
func (e *Engine) coverShortfall(ev *domain.NormalizedEvent, qty decimal.Decimal, plan []Allocation, res *RunResult) []Allocation {
	allocated := decimal.Zero
	for _, al := range plan {
		allocated = allocated.Add(al.Quantity)
	}
	short := qty.Sub(allocated)
	if !short.IsPositive() {
		return plan
	}
	wallet := ev.Wallet
	if ev.Move != nil && ev.Move.Class == domain.MoveExternalRestore {
		wallet = ev.Move.FromWallet
	}
	seq := e.ledger.nextSeq(wallet, ev.Asset)
	lot := &domain.Lot{
		ID:           idhash.ComputeLotID(wallet, ev.Asset, seq),
		Seq:          seq,
		Wallet:       wallet,
		Asset:        ev.Asset,
		Symbol:       ev.Symbol,
		AcquiredAt:   ev.Timestamp,
		QtyAcquired:  short,
		QtyRemaining: short,
		UnitCostAUD:  decimal.Zero,
		Origin:       domain.OriginAcquisition,
		SourceEvent:  ev.ID,
	}
	e.ledger.add(lot)
	res.Warnings = append(res.Warnings, domain.Warning{
		Code:      domain.WarnShortfallAcquisition,
		EventID:   ev.ID,
		Wallet:    wallet,
		Asset:     ev.Asset,
		Timestamp: ev.Timestamp,
		Message:   fmt.Sprintf("open inventory short by %s; acquired at zero cost", short),
	})
	return append(plan, Allocation{Lot: lot, Quantity: short})
}

func (e *Engine) applyMove(ctx context.Context, ev *domain.NormalizedEvent, res *RunResult) error {
	if ev.Move == nil {
		// The reconciler annotates every transfer_out; reaching here without
		// an annotation indicates a wiring bug upstream.
		return &InvariantViolationError{Wallet: ev.Wallet, Asset: ev.Asset, Detail: "lot move without reconciliation annotation"}
	}
	var from, to string
	qty := ev.Quantity.Abs()
	switch ev.Move.Class {
	case domain.MoveExternalRestore:
		from, to = ev.Move.FromWallet, ev.Wallet
	default:
		from, to = ev.Wallet, ev.Move.ToWallet
	}
	if qty.IsZero() {
		return nil
	}

	// Moves relocate oldest-first regardless of the disposal method, so the
	// relocation itself never realigns cost bases.
	plan := consumeInOrder(sortedCopy(e.ledger.open(from, ev.Asset), byAcquiredAsc), qty)
	plan = e.coverShortfall(ev, qty, plan, res)

	moveFee := e.resolveFee(ctx, ev)
	moved := make([]domain.MovedLot, 0, len(plan))
	for _, al := range plan {
		e.ledger.consume(al.Lot, al.Quantity)

		// The moved share of the source lot's fees travels with the
		// quantity; the source keeps the remainder.
		feePortion := decimal.Zero
		if al.Lot.FeesAUD.IsPositive() && al.Lot.QtyAcquired.IsPositive() {
			feePortion = al.Lot.FeesAUD.Mul(al.Quantity).Div(al.Lot.QtyAcquired)
			al.Lot.FeesAUD = al.Lot.FeesAUD.Sub(feePortion)
		}
		moveFeeShare := decimal.Zero
		if moveFee.IsPositive() {
			moveFeeShare = moveFee.Mul(al.Quantity).Div(qty)
		}

		seq := e.ledger.nextSeq(to, ev.Asset)
		newLot := &domain.Lot{
			ID:           idhash.ComputeLotID(to, ev.Asset, seq),
			Seq:          seq,
			Wallet:       to,
			Asset:        ev.Asset,
			Symbol:       al.Lot.Symbol,
			AcquiredAt:   al.Lot.AcquiredAt, // preserved, never reset by a move
			QtyAcquired:  al.Quantity,
			QtyRemaining: al.Quantity,
			UnitCostAUD:  al.Lot.UnitCostAUD, // preserved
			FeesAUD:      feePortion.Add(moveFeeShare),
			Unpriced:     al.Lot.Unpriced,
			Origin:       domain.OriginMoveIn,
			SourceEvent:  ev.ID,
		}
		e.ledger.add(newLot)
		moved = append(moved, domain.MovedLot{
			LotID:       al.Lot.ID,
			NewLotID:    newLot.ID,
			Quantity:    al.Quantity,
			UnitCostAUD: newLot.UnitCostAUD,
			FeesAUD:     newLot.FeesAUD,
			AcquiredAt:  newLot.AcquiredAt,
		})
	}

	res.LotMoves = append(res.LotMoves, &domain.LotMove{
		EventID:    ev.ID,
		FromWallet: from,
		ToWallet:   to,
		Asset:      ev.Asset,
		Symbol:     ev.Symbol,
		Timestamp:  ev.Timestamp,
		Quantity:   qty,
		Class:      ev.Move.Class,
		LotsMoved:  moved,
	})
	if err := e.ledger.checkConservation(from, ev.Asset); err != nil {
		return err
	}
	return e.ledger.checkConservation(to, ev.Asset)
}
