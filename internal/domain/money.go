package domain

import "github.com/shopspring/decimal"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SOLMint is the pseudo-mint used for native SOL pricing lookups.
const SOLMint = "SOL"

// QuantizeAUD rounds an AUD value to cents.
func QuantizeAUD(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// LamportsToSOL converts a lamport amount to SOL with nanosecond-of-SOL
// precision.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}
