package accounting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

// Matching method names.
const (
	MethodFIFO     = "FIFO"
	MethodLIFO     = "LIFO"
	MethodHIFO     = "HIFO"
	MethodSpecific = "SPECIFIC"
)

// Allocation is one slice of an open lot selected for consumption.
type Allocation struct {
	Lot      *domain.Lot
	Quantity decimal.Decimal
}

// MatchingStrategy selects open lots to consume for a disposal. The caller
// guarantees the open lots cover the requested quantity except for the
// Specific-ID strategy, which validates its own selections.
type MatchingStrategy interface {
	// Name returns the method identifier recorded on disposals.
	Name() string

	// SelectLots returns an ordered consumption plan covering qty.
	SelectLots(eventID string, open []*domain.Lot, qty decimal.Decimal) ([]Allocation, error)
}

// LotSelection is one caller-supplied lot choice for a Specific-ID disposal.
type LotSelection struct {
	LotID    string
	Quantity decimal.Decimal
}

// SpecificLots maps event IDs to the lots that must satisfy their disposals.
type SpecificLots map[string][]LotSelection

// NewStrategy constructs the matching strategy for a run. The Specific-ID
// method fails fast when no lot selections are supplied.
func NewStrategy(method string, specific SpecificLots) (MatchingStrategy, error) {
	switch strings.ToUpper(method) {
	case MethodFIFO:
		return fifoStrategy{}, nil
	case MethodLIFO:
		return lifoStrategy{}, nil
	case MethodHIFO:
		return hifoStrategy{}, nil
	case MethodSpecific:
		if len(specific) == 0 {
			return nil, &ConfigError{Reason: "Specific-ID method requires lot selections"}
		}
		return &specificStrategy{selections: specific}, nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unsupported matching method %q", method)}
	}
}

// consumeInOrder walks ordered lots taking quantity until qty is satisfied.
func consumeInOrder(ordered []*domain.Lot, qty decimal.Decimal) []Allocation {
	var plan []Allocation
	remaining := qty
	for _, lot := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if !lot.Open() {
			continue
		}
		take := decimal.Min(lot.QtyRemaining, remaining)
		plan = append(plan, Allocation{Lot: lot, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return plan
}

type fifoStrategy struct{}

func (fifoStrategy) Name() string { return MethodFIFO }

func (fifoStrategy) SelectLots(_ string, open []*domain.Lot, qty decimal.Decimal) ([]Allocation, error) {
	ordered := sortedCopy(open, byAcquiredAsc)
	return consumeInOrder(ordered, qty), nil
}

type lifoStrategy struct{}

func (lifoStrategy) Name() string { return MethodLIFO }

func (lifoStrategy) SelectLots(_ string, open []*domain.Lot, qty decimal.Decimal) ([]Allocation, error) {
	ordered := sortedCopy(open, func(a, b *domain.Lot) bool { return byAcquiredAsc(b, a) })
	return consumeInOrder(ordered, qty), nil
}

type hifoStrategy struct{}

func (hifoStrategy) Name() string { return MethodHIFO }

func (hifoStrategy) SelectLots(_ string, open []*domain.Lot, qty decimal.Decimal) ([]Allocation, error) {
	ordered := sortedCopy(open, func(a, b *domain.Lot) bool {
		if !a.UnitCostAUD.Equal(b.UnitCostAUD) {
			return a.UnitCostAUD.GreaterThan(b.UnitCostAUD)
		}
		// Ties broken oldest-first.
		return byAcquiredAsc(a, b)
	})
	return consumeInOrder(ordered, qty), nil
}

type specificStrategy struct {
	selections SpecificLots
}

func (s *specificStrategy) Name() string { return MethodSpecific }

func (s *specificStrategy) SelectLots(eventID string, open []*domain.Lot, qty decimal.Decimal) ([]Allocation, error) {
	selections, ok := s.selections[eventID]
	if !ok || len(selections) == 0 {
		return nil, &InsufficientSpecificLotError{EventID: eventID, Reason: "no lots selected for event"}
	}
	byID := make(map[string]*domain.Lot, len(open))
	for _, lot := range open {
		byID[lot.ID] = lot
	}
	var plan []Allocation
	total := decimal.Zero
	for _, sel := range selections {
		lot := byID[sel.LotID]
		if lot == nil || !lot.Open() {
			return nil, &InsufficientSpecificLotError{EventID: eventID, Reason: fmt.Sprintf("lot %s not available", sel.LotID)}
		}
		if sel.Quantity.GreaterThan(lot.QtyRemaining) {
			return nil, &InsufficientSpecificLotError{EventID: eventID, Reason: fmt.Sprintf("lot %s holds %s, need %s", sel.LotID, lot.QtyRemaining, sel.Quantity)}
		}
		plan = append(plan, Allocation{Lot: lot, Quantity: sel.Quantity})
		total = total.Add(sel.Quantity)
	}
	if !total.Equal(qty) {
		return nil, &InsufficientSpecificLotError{EventID: eventID, Reason: fmt.Sprintf("selections cover %s, disposal is %s", total, qty)}
	}
	return plan, nil
}

func byAcquiredAsc(a, b *domain.Lot) bool {
	if !a.AcquiredAt.Equal(b.AcquiredAt) {
		return a.AcquiredAt.Before(b.AcquiredAt)
	}
	return a.Seq < b.Seq
}

func sortedCopy(lots []*domain.Lot, less func(a, b *domain.Lot) bool) []*domain.Lot {
	ordered := make([]*domain.Lot, len(lots))
	copy(ordered, lots)
	sort.SliceStable(ordered, func(i, j int) bool { return less(ordered[i], ordered[j]) })
	return ordered
}
