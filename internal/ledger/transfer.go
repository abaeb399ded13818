package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models/events"
)

// retryBackoff spaces the initiator-leg persist retries of a transfer.
const retryBackoff = 100 * time.Millisecond

// transfer executes the two legs of a transfer. The counterparty leg is
// persisted first: by that point the initiator leg has passed every
// precondition, so its only realistic failure is infrastructure, which is
// retried idempotently rather than left as a one-sided transfer.
func (l *Ledger) transfer(ctx context.Context, account models.Account, req Request) ([]models.Entry, error) {
	initiator, err := l.store.FindUserByID(ctx, account.UserID)
	if err != nil {
		return nil, errStorage("could not read the account owner", err)
	}

	cpUser, err := l.store.FindUserByUsername(ctx, req.Counterparty)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, errNotFound("that user doesn't exist")
	}
	if err != nil {
		return nil, errStorage("could not look up the counterparty", err)
	}

	cpAccounts, err := l.store.AccountsByUser(ctx, cpUser.ID)
	if err != nil {
		return nil, errStorage("could not read the counterparty's accounts", err)
	}
	var cpAccount models.Account
	found := false
	for _, a := range cpAccounts {
		if a.Type == req.AccountType {
			cpAccount, found = a, true
			break
		}
	}
	if !found {
		return nil, errNotFound("that user doesn't have a %s account", req.AccountType)
	}
	if cpAccount.ID == account.ID {
		return nil, errValidation("you can't transfer from an account to itself")
	}

	// Lock both accounts in id order to avoid deadlocks.
	srcMu := l.getAccountLock(account.ID)
	cpMu := l.getAccountLock(cpAccount.ID)
	if account.ID < cpAccount.ID {
		srcMu.Lock()
		cpMu.Lock()
	} else {
		cpMu.Lock()
		srcMu.Lock()
	}
	defer srcMu.Unlock()
	defer cpMu.Unlock()

	// Counterparty leg: the mirrored positive amount. Nothing has been
	// persisted before this, so any failure here aborts cleanly.
	amountCP := req.Amount.Neg()
	var cpEntry models.Entry
	err = interfaces.ErrSequenceConflict
	for attempt := 0; attempt < writeAttempts && errors.Is(err, interfaces.ErrSequenceConflict); attempt++ {
		var cpEntries []models.Entry
		cpEntries, err = l.store.GetEntriesByAccount(ctx, cpAccount.ID)
		if err != nil {
			return nil, errStorage("could not read the counterparty's transactions", err)
		}
		pos := nextPosition(cpEntries, amountCP)
		cpEntry = models.Entry{
			ID:           uuid.New().String(),
			AccountID:    cpAccount.ID,
			UserID:       cpUser.ID,
			Amount:       amountCP,
			Description:  "Transfer from " + initiator.Username,
			Counterparty: initiator.Username,
			Sequence:     pos.Sequence,
			Balance:      pos.Balance,
			CreatedAt:    time.Now().UTC(),
		}
		err = l.store.CreateEntry(ctx, cpEntry)
	}
	if errors.Is(err, interfaces.ErrSequenceConflict) {
		return nil, errConflict("the counterparty account was modified concurrently, please retry", err)
	}
	if err != nil {
		return nil, errStorage("could not record the counterparty leg", err)
	}
	if err := l.attachEntry(ctx, cpAccount.ID, cpEntry); err != nil {
		// Nothing is durable on the initiator side yet, so the transfer can
		// still abort cleanly by taking the counterparty leg back out.
		l.rollbackEntries(ctx, []string{cpEntry.ID}, err)
		return nil, err
	}

	// Initiator leg. The counterparty leg is already durable, so from here
	// on failures are retried with the same entry id: a duplicate-id result
	// means an earlier attempt actually landed.
	entries, err := l.store.GetEntriesByAccount(ctx, account.ID)
	if err != nil {
		return nil, errStorage("could not read the account's transactions", err)
	}
	pos := nextPosition(entries, req.Amount)
	entry := models.Entry{
		ID:           uuid.New().String(),
		AccountID:    account.ID,
		UserID:       account.UserID,
		Amount:       req.Amount,
		Description:  req.Description,
		Counterparty: req.Counterparty,
		Sequence:     pos.Sequence,
		Balance:      pos.Balance,
		CreatedAt:    time.Now().UTC(),
	}
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		err = l.store.CreateEntry(ctx, entry)
		if err == nil || errors.Is(err, interfaces.ErrDuplicateID) {
			err = nil
			break
		}
		if errors.Is(err, interfaces.ErrSequenceConflict) {
			// Another process slipped an entry in; recompute the position
			// from a fresh read and keep the same entry id.
			entries, err = l.store.GetEntriesByAccount(ctx, account.ID)
			if err != nil {
				continue
			}
			pos = nextPosition(entries, req.Amount)
			entry.Sequence = pos.Sequence
			entry.Balance = pos.Balance
			err = interfaces.ErrSequenceConflict
		}
	}
	if err != nil {
		// The counterparty leg is durable but the initiator leg is not:
		// the ledger is one-sided until an operator intervenes.
		l.log.Errorf("ledger inconsistency: counterparty entry %s on account %s persisted but initiator entry %s on account %s failed: %v",
			cpEntry.ID, cpAccount.ID, entry.ID, account.ID, err)
		return nil, errStorage("the transfer could not be completed", err)
	}
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		if err = l.attachEntry(ctx, account.ID, entry); err == nil {
			break
		}
	}
	if err != nil {
		// Both legs are durable at this point; only the initiator's cached
		// account record is stale.
		l.log.Errorf("ledger inconsistency: entry %s recorded on account %s but the account record could not be updated: %v", entry.ID, account.ID, err)
		return nil, err
	}

	l.publish(topicTransferCompleted, events.TransferCompleted{
		FromAccount: account.ID,
		ToAccount:   cpAccount.ID,
		FromEntryID: entry.ID,
		ToEntryID:   cpEntry.ID,
		Amount:      req.Amount,
		OccurredAt:  entry.CreatedAt,
	})
	l.log.Infof("transfer of %s from account %s to %s's %s account recorded", req.Amount, account.ID, cpUser.Username, cpAccount.Type)

	return sortedEntries(append(entries, entry)), nil
}
