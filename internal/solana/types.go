package solana

// EnhancedTransaction is one decoded transaction from the enhanced
// transaction API. Balance changes carry raw integer amounts; the
// decimal-adjusted tokenTransfers list is used for counterparty routing
// only.
type EnhancedTransaction struct {
	Signature       string           `json:"signature"`
	Slot            int64            `json:"slot"`
	Timestamp       int64            `json:"timestamp"` // Unix seconds
	Type            string           `json:"type"`
	Source          string           `json:"source"`
	Fee             int64            `json:"fee"` // lamports
	FeePayer        string           `json:"feePayer"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	AccountData     []AccountData    `json:"accountData"`
	TransactionErr  interface{}      `json:"transactionError"`
}

// NativeTransfer is a SOL movement between accounts, in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenTransfer is a token movement between user accounts.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"` // decimal-adjusted
}

// AccountData carries per-account balance changes within a transaction.
type AccountData struct {
	Account             string               `json:"account"`
	NativeBalanceChange int64                `json:"nativeBalanceChange"` // lamports
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

// TokenBalanceChange is a raw token balance delta for a token account.
type TokenBalanceChange struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is an integer token amount with its mint decimals. The
// amount is a string in the wire format to avoid float rounding.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int32  `json:"decimals"`
}

// FetchOpts defines optional pagination parameters for GetTransactions.
type FetchOpts struct {
	Before string // page backwards from this signature (exclusive)
	Until  string // stop when this signature is reached (exclusive)
	Limit  int    // maximum transactions per page
}
