package accounting

import "fmt"

// InsufficientSpecificLotError reports a Specific-ID disposal that cannot be
// satisfied by the caller-supplied lot selections. It is fatal to that
// disposal only: the ledger is left untouched for the event and processing
// continues, with the error surfaced on the run result.
type InsufficientSpecificLotError struct {
	EventID string
	Reason  string
}

func (e *InsufficientSpecificLotError) Error() string {
	return fmt.Sprintf("specific lot selection for event %s: %s", e.EventID, e.Reason)
}

// InvariantViolationError indicates a ledger bug: the lot conservation
// identity no longer holds. It aborts the run rather than produce silently
// incorrect output.
type InvariantViolationError struct {
	Wallet string
	Asset  string
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger invariant violated for (%s, %s): %s", e.Wallet, e.Asset, e.Detail)
}

// ConfigError reports an inconsistent engine configuration, such as the
// Specific-ID method requested without lot selections. Fatal.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "accounting config: " + e.Reason
}
