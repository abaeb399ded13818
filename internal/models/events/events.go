package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryPosted is emitted after a deposit, withdrawal or generated entry is
// durably recorded.
type EntryPosted struct {
	EntryID    string          `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Sequence   int64           `json:"sequence"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// TransferCompleted is emitted once both legs of a transfer are recorded.
type TransferCompleted struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	FromEntryID string          `json:"from_entry_id"`
	ToEntryID   string          `json:"to_entry_id"`
	Amount      decimal.Decimal `json:"amount"` // as posted on the initiating side, negative
	OccurredAt  time.Time       `json:"occurred_at"`
}
