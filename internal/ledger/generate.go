package ledger

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models/events"
)

// SyntheticSource supplies human-readable counterparty names for generated
// entries. Production wiring draws fake merchant data; tests inject a fixed
// sequence.
type SyntheticSource interface {
	Counterparty() string
}

// GenerateEntries seeds the account with n synthetic deposits and
// withdrawals. Amounts are drawn uniformly from [-700, +1300) and rounded to
// two decimals; a zero draw is tolerated since this is a data-seeding
// utility, not a financial operation. Sequencing and running balances follow
// the same cumulative contract as real movements, and the batch is persisted
// in one store call.
func (l *Ledger) GenerateEntries(ctx context.Context, userID, accountID string, n int) ([]models.Entry, error) {
	if n < 1 {
		return nil, errValidation("number of transactions must be greater than or equal to 1")
	}

	account, err := l.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	mu := l.getAccountLock(account.ID)
	mu.Lock()
	defer mu.Unlock()

	// Re-resolve under the lock: the account may have been deleted while
	// this request waited.
	account, err = l.ownedAccount(ctx, userID, account.ID)
	if err != nil {
		return nil, err
	}

	var created []models.Entry
	err = interfaces.ErrSequenceConflict
	for attempt := 0; attempt < writeAttempts && errors.Is(err, interfaces.ErrSequenceConflict); attempt++ {
		var entries []models.Entry
		entries, err = l.store.GetEntriesByAccount(ctx, account.ID)
		if err != nil {
			return nil, errStorage("could not read the account's transactions", err)
		}

		amounts := make([]decimal.Decimal, n)
		for i := range amounts {
			amounts[i] = decimal.NewFromFloat(rand.Float64()*2000 - 700).Round(2)
		}
		positions := nextPositions(entries, amounts)

		now := time.Now().UTC()
		created = make([]models.Entry, n)
		for i := range created {
			counterparty := l.synth.Counterparty()
			description := "Payment from " + counterparty
			if amounts[i].Sign() < 0 {
				description = "Payment to " + counterparty
			}
			created[i] = models.Entry{
				ID:           uuid.New().String(),
				AccountID:    account.ID,
				UserID:       account.UserID,
				Amount:       amounts[i],
				Description:  description,
				Counterparty: counterparty,
				Sequence:     positions[i].Sequence,
				Balance:      positions[i].Balance,
				CreatedAt:    now,
			}
		}

		err = l.store.CreateEntries(ctx, created)
	}
	if errors.Is(err, interfaces.ErrSequenceConflict) {
		return nil, errConflict("the account was modified concurrently, please retry", err)
	}
	if err != nil {
		return nil, errStorage("could not record the generated transactions", err)
	}

	account, err = l.store.FindAccountByID(ctx, account.ID)
	if err != nil {
		l.rollbackEntries(ctx, entryIDs(created), err)
		return nil, errStorage("could not read the account", err)
	}
	account.EntryIDs = append(account.EntryIDs, entryIDs(created)...)
	account.Balance = created[n-1].Balance
	if err := l.store.SaveAccount(ctx, account); err != nil {
		l.rollbackEntries(ctx, entryIDs(created), err)
		return nil, errStorage("could not update the account", err)
	}

	for _, e := range created {
		l.publish(topicEntryPosted, events.EntryPosted{
			EntryID:    e.ID,
			AccountID:  e.AccountID,
			Amount:     e.Amount,
			Sequence:   e.Sequence,
			Balance:    e.Balance,
			OccurredAt: e.CreatedAt,
		})
	}
	l.log.Infof("%d synthetic entries generated on account %s", n, account.ID)

	return created, nil
}
