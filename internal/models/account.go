package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the kind of account a user holds. A user owns at most one
// account of each type.
type AccountType string

const (
	AccountChecking  AccountType = "Checking"
	AccountSavings   AccountType = "Savings"
	AccountInvesting AccountType = "Investing"
)

// Valid reports whether t is a recognized account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountInvesting:
		return true
	}
	return false
}

// Account aggregates the entries recorded against it. Balance is a cached
// copy of the last entry's running balance (zero when the account has no
// entries); the entries themselves stay the source of truth.
type Account struct {
	ID        string          `json:"id"`
	UserID    string          `json:"owner"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	EntryIDs  []string        `json:"entries"` // ids in creation order
	CreatedAt time.Time       `json:"createdAt"`
}
