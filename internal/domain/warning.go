package domain

import "time"

// WarningCode identifies a non-fatal condition surfaced in the final output.
type WarningCode string

const (
	WarnUnpricedEvent         WarningCode = "unpriced_event"
	WarnAmbiguousTransferMatch WarningCode = "ambiguous_transfer_match"
	WarnShortfallAcquisition  WarningCode = "shortfall_acquisition"
	WarnUnmatchedTransferOut  WarningCode = "unmatched_transfer_out"
	WarnFeePayerUnknown       WarningCode = "fee_payer_unknown"
)

// Warning is a non-fatal annotation tied to an event. It never blocks
// processing and retains enough context to trace back to the raw record.
type Warning struct {
	Code      WarningCode
	EventID   string
	Wallet    string
	Asset     string
	Timestamp time.Time
	Message   string
}
