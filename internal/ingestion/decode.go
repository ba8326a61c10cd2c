package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/solana"
)

// txTypeKinds maps enhanced-transaction types to raw leg kinds. Types not
// listed here fall through as their lowercased name and are classified
// downstream.
var txTypeKinds = map[string]string{
	"SWAP":               "swap",
	"TRANSFER":           "transfer",
	"TOKEN_MINT":         "mint",
	"BURN":               "burn",
	"AIRDROP":            "airdrop",
	"ADD_LIQUIDITY":      "liquidity_add",
	"WITHDRAW_LIQUIDITY": "liquidity_remove",
	"NFT_SALE":           "sell",
	"NFT_BID":            "buy",
}

func legKindForType(txType string) string {
	if kind, ok := txTypeKinds[txType]; ok {
		return kind
	}
	return strings.ToLower(txType)
}

// DecodeTransaction converts one enhanced transaction into the raw cache
// form. Failed transactions decode to nil with no error: they moved no
// balances. Amounts come from raw balance changes, never from the
// decimal-adjusted transfer lists, so precision is exact.
func DecodeTransaction(tx *solana.EnhancedTransaction) (*domain.RawTransaction, error) {
	if tx.Signature == "" {
		return nil, fmt.Errorf("decode transaction: missing signature")
	}
	if tx.TransactionErr != nil {
		return nil, nil
	}

	kind := legKindForType(tx.Type)
	tokenCp, nativeCp := counterpartyIndex(tx)

	var legs []domain.RawLeg
	for _, ad := range tx.AccountData {
		for _, change := range ad.TokenBalanceChanges {
			if change.UserAccount == "" || change.Mint == "" {
				continue
			}
			amount, err := strconv.ParseInt(change.RawTokenAmount.TokenAmount, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode transaction %s: token amount %q: %w",
					tx.Signature, change.RawTokenAmount.TokenAmount, err)
			}
			if amount == 0 {
				continue
			}
			legs = append(legs, domain.RawLeg{
				Kind:         kind,
				Wallet:       change.UserAccount,
				Mint:         change.Mint,
				Decimals:     int(change.RawTokenAmount.Decimals),
				AmountRaw:    amount,
				Counterparty: tokenCp[change.Mint+"|"+change.UserAccount],
			})
		}

		native := ad.NativeBalanceChange
		if ad.Account == tx.FeePayer {
			// The fee is carried separately on the transaction; add it
			// back so the leg reflects the economic flow alone.
			native += tx.Fee
		}
		if native == 0 {
			continue
		}
		legs = append(legs, domain.RawLeg{
			Kind:         kind,
			Wallet:       ad.Account,
			Mint:         domain.SOLMint,
			Symbol:       domain.SOLMint,
			Decimals:     9,
			AmountRaw:    native,
			Counterparty: nativeCp[ad.Account],
		})
	}

	return &domain.RawTransaction{
		Signature:   tx.Signature,
		Slot:        tx.Slot,
		BlockTime:   time.Unix(tx.Timestamp, 0).UTC(),
		FeePayer:    tx.FeePayer,
		FeeLamports: tx.Fee,
		Legs:        legs,
	}, nil
}

// counterpartyIndex builds lookup tables from the transfer lists: for each
// (mint, wallet) pair the opposite side of the token movement, and for each
// wallet the opposite side of its SOL movement.
func counterpartyIndex(tx *solana.EnhancedTransaction) (token, native map[string]string) {
	token = make(map[string]string)
	native = make(map[string]string)
	for _, tt := range tx.TokenTransfers {
		if tt.FromUserAccount != "" && tt.ToUserAccount != "" {
			token[tt.Mint+"|"+tt.FromUserAccount] = tt.ToUserAccount
			token[tt.Mint+"|"+tt.ToUserAccount] = tt.FromUserAccount
		}
	}
	for _, nt := range tx.NativeTransfers {
		if nt.FromUserAccount != "" && nt.ToUserAccount != "" {
			native[nt.FromUserAccount] = nt.ToUserAccount
			native[nt.ToUserAccount] = nt.FromUserAccount
		}
	}
	return token, native
}
