package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a financial movement.
type TransactionType string

const (
	TypeDeposit    TransactionType = "Deposit"
	TypeWithdrawal TransactionType = "Withdrawal"
	TypeTransfer   TransactionType = "Transfer"
)

// Valid reports whether t is one of the three recognized kinds.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer:
		return true
	}
	return false
}

// Entry represents a single ledger record for an account.
// Once written it is never modified: the sequence number and the running
// balance it carries are fixed at creation time.
type Entry struct {
	ID           string          `json:"id"`           // unique identifier
	AccountID    string          `json:"account"`      // which account this entry belongs to
	UserID       string          `json:"user"`         // owner of the account
	Amount       decimal.Decimal `json:"amount"`       // signed, never zero for real movements
	Description  string          `json:"description"`  // non-empty text
	Counterparty string          `json:"counterparty,omitempty"` // other party's username on transfer legs
	Sequence     int64           `json:"sequence"`     // zero-based, gap-free per account
	Balance      decimal.Decimal `json:"balance"`      // running total through this entry
	CreatedAt    time.Time       `json:"createdAt"`    // timestamp
}
