package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BalanceStore struct {
	db *pgxpool.Pool
}

func NewBalanceStore(db *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{db: db}
}

func (c *BalanceStore) GetBalanceByUserID(ctx context.Context, userId int64) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := c.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, err
	}

	balance := totalDr.Sub(totalCr)
	return balance, nil
}

// GetBalanceByUserIDTx re-reads the balance inside the caller's
// transaction with the wallet owner's users row locked first. The user
// row lock is what serializes check-then-debit across rooms: a ledger
// row lock alone would not cover a debit a concurrent transaction is
// still about to insert.
func (c *BalanceStore) GetBalanceByUserIDTx(ctx context.Context, tx pgx.Tx, userId int64) (decimal.Decimal, error) {
	var locked int64
	err := tx.QueryRow(ctx, `
        SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE
    `, userId).Scan(&locked)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock wallet for user %d: %w", userId, err)
	}

	var totalDr, totalCr decimal.Decimal
	err = tx.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, err
	}

	return totalDr.Sub(totalCr), nil
}

// DebitTx writes one immutable ledger row taking amountCents out of the
// user's wallet (cr side). Ledger rows are never updated or deleted.
func (c *BalanceStore) DebitTx(ctx context.Context, tx pgx.Tx, userID, amountCents int64, ttype, tref string, roomID, entryID *int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, room_id, entry_id, status)
		VALUES ($1, $2, 0, $3, $4, $5, $6, 'completed')
	`, userID, ttype, decimal.NewFromInt(amountCents), tref, roomID, entryID)
	if err != nil {
		return fmt.Errorf("failed to debit user %d: %w", userID, err)
	}
	return nil
}

// CreditTx writes one immutable ledger row putting amountCents into the
// user's wallet (dr side).
func (c *BalanceStore) CreditTx(ctx context.Context, tx pgx.Tx, userID, amountCents int64, ttype, tref string, roomID, entryID *int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, room_id, entry_id, status)
		VALUES ($1, $2, $3, 0, $4, $5, $6, 'completed')
	`, userID, ttype, decimal.NewFromInt(amountCents), tref, roomID, entryID)
	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	return nil
}
