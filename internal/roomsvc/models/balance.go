package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger transaction kinds
const (
	TTypeDeposit  = "deposit"
	TTypeEntryFee = "entry_fee"
	TTypePrize    = "prize"
	TTypeRefund   = "refund"
)

// Balance is one immutable row of the wallet ledger. Amounts are cents;
// a user's balance is SUM(dr) - SUM(cr) over completed rows.
type Balance struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	TType     string          `json:"ttype"`
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"`
	RoomID    *int64          `json:"room_id,omitempty"`
	EntryID   *int64          `json:"entry_id,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
