package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

// position is the sequencing state after the last entry of an account:
// the sequence number already taken and the running balance through it.
type position struct {
	Sequence int64
	Balance  decimal.Decimal
}

// lastPosition scans the account's entries for the highest sequence. An
// empty collection yields the synthetic zero state {-1, 0}, so the first
// real entry lands on sequence 0.
func lastPosition(entries []models.Entry) position {
	last := position{Sequence: -1, Balance: decimal.Zero}
	for _, e := range entries {
		if e.Sequence > last.Sequence {
			last = position{Sequence: e.Sequence, Balance: e.Balance}
		}
	}
	return last
}

// nextPosition computes the sequence and running balance the next entry must
// carry, rounded to the currency's two minor-unit decimals. It is a pure
// computation over a snapshot; the caller serializes compute-and-persist
// per account.
func nextPosition(entries []models.Entry, amount decimal.Decimal) position {
	last := lastPosition(entries)
	return position{
		Sequence: last.Sequence + 1,
		Balance:  last.Balance.Add(amount).Round(2),
	}
}

// nextPositions assigns consecutive sequences and a cumulative running
// balance for a batch of amounts, seeded from the account's last entry.
func nextPositions(entries []models.Entry, amounts []decimal.Decimal) []position {
	last := lastPosition(entries)
	positions := make([]position, len(amounts))
	balance := last.Balance
	for i, amount := range amounts {
		balance = balance.Add(amount).Round(2)
		positions[i] = position{Sequence: last.Sequence + int64(i) + 1, Balance: balance}
	}
	return positions
}
