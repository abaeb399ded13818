package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

// CreateAccount opens a new account for the user. A user holds at most one
// account of each type.
func (l *Ledger) CreateAccount(ctx context.Context, userID, name string, accountType models.AccountType) (models.Account, error) {
	if name == "" {
		return models.Account{}, errValidation("the name field cannot be empty")
	}
	if !accountType.Valid() {
		return models.Account{}, errValidation("type must be one of the following: Checking, Savings, Investing")
	}

	user, err := l.store.FindUserByID(ctx, userID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Account{}, errNotFound("that user doesn't exist")
	}
	if err != nil {
		return models.Account{}, errStorage("could not read the user", err)
	}

	existing, err := l.store.AccountsByUser(ctx, userID)
	if err != nil {
		return models.Account{}, errStorage("could not read the user's accounts", err)
	}
	for _, a := range existing {
		if a.Type == accountType {
			return models.Account{}, errValidation("you already have a %s account", accountType)
		}
	}

	account := models.Account{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Type:      accountType,
		Balance:   decimal.Zero,
		EntryIDs:  []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.CreateAccount(ctx, account); err != nil {
		// A concurrent request may have won the race past the check above;
		// the store enforces one account per type.
		if errors.Is(err, interfaces.ErrDuplicateID) {
			return models.Account{}, errValidation("you already have a %s account", accountType)
		}
		return models.Account{}, errStorage("could not create the account", err)
	}

	user.AccountIDs = append(user.AccountIDs, account.ID)
	if err := l.store.SaveUser(ctx, user); err != nil {
		return models.Account{}, errStorage("could not attach the account to its owner", err)
	}

	l.log.Infof("%s account %s opened for user %s", account.Type, account.ID, user.Username)
	return account, nil
}

// ListAccounts returns the user's accounts.
func (l *Ledger) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := l.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, errStorage("could not read the user's accounts", err)
	}
	return accounts, nil
}

// DeleteAccount removes an account and cascades: every entry recorded
// against it is deleted first, then the account itself, then the reference
// on its owner. The whole cascade runs under the account's lock.
func (l *Ledger) DeleteAccount(ctx context.Context, userID, accountID string) (models.Account, error) {
	account, err := l.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return models.Account{}, err
	}

	mu := l.getAccountLock(account.ID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := l.store.GetEntriesByAccount(ctx, account.ID)
	if err != nil {
		return models.Account{}, errStorage("could not read the account's transactions", err)
	}
	if len(entries) > 0 {
		if err := l.store.DeleteEntries(ctx, entryIDs(entries)); err != nil {
			return models.Account{}, errStorage("could not delete the account's transactions", err)
		}
	}

	if err := l.store.DeleteAccount(ctx, account.ID); err != nil {
		return models.Account{}, errStorage("could not delete the account", err)
	}

	user, err := l.store.FindUserByID(ctx, account.UserID)
	if err != nil {
		return models.Account{}, errStorage("could not read the account owner", err)
	}
	user.AccountIDs = removeID(user.AccountIDs, account.ID)
	if err := l.store.SaveUser(ctx, user); err != nil {
		return models.Account{}, errStorage("could not detach the account from its owner", err)
	}

	l.log.Infof("account %s deleted with %d entries", account.ID, len(entries))
	return account, nil
}
