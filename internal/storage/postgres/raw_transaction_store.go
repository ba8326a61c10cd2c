package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage"
)

// RawTransactionStore implements storage.RawTransactionStore using PostgreSQL.
type RawTransactionStore struct {
	pool *Pool
}

// NewRawTransactionStore creates a new RawTransactionStore.
func NewRawTransactionStore(pool *Pool) *RawTransactionStore {
	return &RawTransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawTransactionStore = (*RawTransactionStore)(nil)

// rawLegRecord is the JSONB wire form of a domain.RawLeg.
type rawLegRecord struct {
	Kind         string `json:"kind"`
	Wallet       string `json:"wallet"`
	Mint         string `json:"mint"`
	Symbol       string `json:"symbol,omitempty"`
	Decimals     int    `json:"decimals"`
	AmountRaw    int64  `json:"amount_raw"`
	Counterparty string `json:"counterparty,omitempty"`
}

// Insert adds a raw transaction for a wallet, assigning its ingestion
// sequence. Returns ErrDuplicateKey if (wallet, signature) exists.
func (s *RawTransactionStore) Insert(ctx context.Context, wallet string, tx *domain.RawTransaction) error {
	if wallet == "" || tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	legs, err := encodeLegs(tx.Legs)
	if err != nil {
		return fmt.Errorf("encode legs: %w", err)
	}

	var consideration *string
	if tx.ConsiderationAUD.Valid {
		v := tx.ConsiderationAUD.Decimal.String()
		consideration = &v
	}

	query := `
		INSERT INTO raw_transactions (
			wallet, signature, slot, block_time, fee_payer, fee_lamports, consideration_aud, legs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ingest_seq
	`

	err = s.pool.QueryRow(ctx, query,
		wallet,
		tx.Signature,
		tx.Slot,
		tx.BlockTime.UTC(),
		tx.FeePayer,
		tx.FeeLamports,
		consideration,
		legs,
	).Scan(&tx.IngestSeq)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert raw transaction: %w", err)
	}
	return nil
}

// GetByWallet retrieves all cached transactions for a wallet, ordered by
// ingestion sequence ASC.
func (s *RawTransactionStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.RawTransaction, error) {
	query := `
		SELECT ingest_seq, signature, slot, block_time, fee_payer, fee_lamports, consideration_aud, legs
		FROM raw_transactions
		WHERE wallet = $1
		ORDER BY ingest_seq ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get raw transactions by wallet: %w", err)
	}
	defer rows.Close()

	return scanRawTransactions(rows)
}

// LatestSignature returns the most recently ingested signature for a wallet.
// Returns ErrNotFound when the wallet has no cached transactions.
func (s *RawTransactionStore) LatestSignature(ctx context.Context, wallet string) (string, error) {
	query := `
		SELECT signature
		FROM raw_transactions
		WHERE wallet = $1
		ORDER BY ingest_seq DESC
		LIMIT 1
	`

	var signature string
	err := s.pool.QueryRow(ctx, query, wallet).Scan(&signature)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("latest signature: %w", err)
	}
	return signature, nil
}

func encodeLegs(legs []domain.RawLeg) ([]byte, error) {
	records := make([]rawLegRecord, 0, len(legs))
	for _, leg := range legs {
		records = append(records, rawLegRecord{
			Kind:         leg.Kind,
			Wallet:       leg.Wallet,
			Mint:         leg.Mint,
			Symbol:       leg.Symbol,
			Decimals:     leg.Decimals,
			AmountRaw:    leg.AmountRaw,
			Counterparty: leg.Counterparty,
		})
	}
	return json.Marshal(records)
}

func decodeLegs(data []byte) ([]domain.RawLeg, error) {
	var records []rawLegRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	legs := make([]domain.RawLeg, 0, len(records))
	for _, rec := range records {
		legs = append(legs, domain.RawLeg{
			Kind:         rec.Kind,
			Wallet:       rec.Wallet,
			Mint:         rec.Mint,
			Symbol:       rec.Symbol,
			Decimals:     rec.Decimals,
			AmountRaw:    rec.AmountRaw,
			Counterparty: rec.Counterparty,
		})
	}
	return legs, nil
}

// scanRawTransactions scans multiple rows into a slice of RawTransaction.
func scanRawTransactions(rows pgx.Rows) ([]*domain.RawTransaction, error) {
	var txs []*domain.RawTransaction

	for rows.Next() {
		var (
			tx            domain.RawTransaction
			consideration *string
			legs          []byte
		)

		err := rows.Scan(
			&tx.IngestSeq,
			&tx.Signature,
			&tx.Slot,
			&tx.BlockTime,
			&tx.FeePayer,
			&tx.FeeLamports,
			&consideration,
			&legs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw transaction row: %w", err)
		}
		tx.BlockTime = tx.BlockTime.UTC()

		if consideration != nil {
			value, err := decimal.NewFromString(*consideration)
			if err != nil {
				return nil, fmt.Errorf("parse consideration: %w", err)
			}
			tx.ConsiderationAUD = decimal.NewNullDecimal(value)
		}

		tx.Legs, err = decodeLegs(legs)
		if err != nil {
			return nil, fmt.Errorf("decode legs: %w", err)
		}

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw transaction rows: %w", err)
	}

	return txs, nil
}
