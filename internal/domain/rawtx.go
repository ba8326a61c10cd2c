package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawLeg is one asset movement inside a raw transaction, as extracted by the
// ingestion source. AmountRaw is in base units, signed: positive means inflow
// to Wallet.
type RawLeg struct {
	Kind         string // swap | transfer | mint | burn | airdrop | liquidity_add | liquidity_remove | buy | sell
	Wallet       string
	Mint         string
	Symbol       string
	Decimals     int
	AmountRaw    int64
	Counterparty string
}

// RawTransaction is one cached on-chain transaction. The engine only relies
// on the stable signature, the block time, and the extracted legs.
type RawTransaction struct {
	Signature   string
	Slot        int64
	BlockTime   time.Time // UTC
	FeePayer    string
	FeeLamports int64
	Legs        []RawLeg
	// ConsiderationAUD is a transaction-implied value supplied by the
	// ingestion collaborator, when known. The normalizer also derives one
	// from stablecoin legs when absent.
	ConsiderationAUD decimal.NullDecimal
	// IngestSeq is the position of the record in the original ingestion
	// order. Deduplication keeps the lowest sequence per signature.
	IngestSeq int64
}

// Amount converts a raw leg amount to a decimal token quantity.
func (l *RawLeg) Amount() decimal.Decimal {
	return decimal.New(l.AmountRaw, -int32(l.Decimals))
}
