package store

import (
	"context"
	"errors"
	"time"

	"vendorhub/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store journals lifecycle transitions and settlement outcomes. The remote
// marketplace API stays the source of truth for order state; the journal
// exists for audit and for replaying degraded settlements.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) RecordTransition(ctx context.Context, t models.Transition) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO order_transitions (
			order_id, vendor_phone, from_status, to_status, action, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		t.OrderID,
		t.VendorPhone,
		string(t.From),
		string(t.To),
		t.Action,
		t.CreatedAt,
	)
	return err
}

func (s *Store) InsertSettlement(ctx context.Context, entry models.Settlement) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO settlements (
			settlement_id, order_id, vendor_phone, transaction_id,
			amount, method, txn_logged, wallet_done, order_updated,
			reconciled, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (settlement_id) DO UPDATE SET
			txn_logged=EXCLUDED.txn_logged,
			wallet_done=EXCLUDED.wallet_done,
			order_updated=EXCLUDED.order_updated,
			reconciled=EXCLUDED.reconciled,
			updated_at=EXCLUDED.updated_at
	`,
		entry.SettlementID,
		entry.OrderID,
		entry.VendorPhone,
		entry.TransactionID,
		entry.Amount,
		string(entry.Method),
		entry.TxnLogged,
		entry.WalletDone,
		entry.OrderUpdated,
		entry.Reconciled,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	return err
}

// LatestSettlement returns the most recent settlement attempt for the order,
// or nil when none exists.
func (s *Store) LatestSettlement(ctx context.Context, orderID string) (*models.Settlement, error) {
	var entry models.Settlement
	var method string
	err := s.Pool.QueryRow(ctx, `
		SELECT settlement_id, order_id, vendor_phone, transaction_id,
			amount, method, txn_logged, wallet_done, order_updated,
			reconciled, created_at, updated_at
		FROM settlements
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID).Scan(
		&entry.SettlementID,
		&entry.OrderID,
		&entry.VendorPhone,
		&entry.TransactionID,
		&entry.Amount,
		&method,
		&entry.TxnLogged,
		&entry.WalletDone,
		&entry.OrderUpdated,
		&entry.Reconciled,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.Method = models.PaymentMethod(method)
	return &entry, nil
}

// ListUnreconciled returns committed settlements that still miss a side step.
func (s *Store) ListUnreconciled(ctx context.Context, limit int) ([]*models.Settlement, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT settlement_id, order_id, vendor_phone, transaction_id,
			amount, method, txn_logged, wallet_done, order_updated,
			reconciled, created_at, updated_at
		FROM settlements
		WHERE reconciled = false AND order_updated = true
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Settlement
	for rows.Next() {
		var entry models.Settlement
		var method string
		if err := rows.Scan(
			&entry.SettlementID,
			&entry.OrderID,
			&entry.VendorPhone,
			&entry.TransactionID,
			&entry.Amount,
			&method,
			&entry.TxnLogged,
			&entry.WalletDone,
			&entry.OrderUpdated,
			&entry.Reconciled,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entry.Method = models.PaymentMethod(method)
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// UpdateSettlementSteps persists the outcome of a replay attempt.
func (s *Store) UpdateSettlementSteps(ctx context.Context, settlementID string, txnLogged, walletDone, reconciled bool) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE settlements
		SET txn_logged=$2, wallet_done=$3, reconciled=$4, updated_at=$5
		WHERE settlement_id=$1
	`, settlementID, txnLogged, walletDone, reconciled, time.Now().UTC())
	return err
}
