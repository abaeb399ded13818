package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models/events"
)

// Kafka topics the engine publishes to.
const (
	topicEntryPosted       = "entry_posted"
	topicTransferCompleted = "transfer_completed"
)

// writeAttempts bounds both the conflict retry (whole operation restarted
// from a fresh read) and the initiator-leg storage retry of a transfer.
const writeAttempts = 3

// Ledger executes deposits, withdrawals and transfers against a shared
// durable store. It holds one mutex per account id so the read-compute-write
// span of the sequencer runs serialized per account; no ledger state lives
// in memory between requests.
type Ledger struct {
	store  interfaces.Store
	events interfaces.EventPublisher // optional, nil disables publishing
	synth  SyntheticSource
	log    *logrus.Logger

	muMap map[string]*sync.Mutex // per-account locks
	mapMu sync.Mutex             // protects the muMap itself
}

// New creates a Ledger on top of a storage implementation. events may be
// nil when no broker is configured.
func New(store interfaces.Store, events interfaces.EventPublisher, synth SyntheticSource, log *logrus.Logger) *Ledger {
	return &Ledger{
		store:  store,
		events: events,
		synth:  synth,
		log:    log,
		muMap:  make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) getAccountLock(accountID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[accountID]; !exists {
		l.muMap[accountID] = &sync.Mutex{}
	}
	return l.muMap[accountID]
}

// Request describes one inbound financial movement. The caller has already
// authenticated UserID; everything else is validated here.
type Request struct {
	UserID      string
	AccountID   string
	Amount      decimal.Decimal
	Description string
	Type        models.TransactionType

	// Transfer only: the target username and which of their accounts
	// receives the mirrored leg.
	Counterparty string
	AccountType  models.AccountType
}

// CreateDeposit records a positive movement against the account and returns
// the account's full entry list including the new entry.
func (l *Ledger) CreateDeposit(ctx context.Context, userID, accountID string, amount decimal.Decimal, description string) ([]models.Entry, error) {
	return l.Post(ctx, Request{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		Type:        models.TypeDeposit,
	})
}

// CreateWithdrawal records a negative movement against the account.
func (l *Ledger) CreateWithdrawal(ctx context.Context, userID, accountID string, amount decimal.Decimal, description string) ([]models.Entry, error) {
	return l.Post(ctx, Request{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		Type:        models.TypeWithdrawal,
	})
}

// CreateTransfer moves money from the user's account into another user's
// account of the requested type. The amount is negative: the initiator
// always pays out.
func (l *Ledger) CreateTransfer(ctx context.Context, userID, accountID string, amount decimal.Decimal, description, counterparty string, accountType models.AccountType) ([]models.Entry, error) {
	return l.Post(ctx, Request{
		UserID:       userID,
		AccountID:    accountID,
		Amount:       amount,
		Description:  description,
		Type:         models.TypeTransfer,
		Counterparty: counterparty,
		AccountType:  accountType,
	})
}

// Post validates and executes a movement. Preconditions are checked in a
// fixed order and nothing is persisted until every one of them passes.
func (l *Ledger) Post(ctx context.Context, req Request) ([]models.Entry, error) {
	if req.Amount.IsZero() {
		return nil, errValidation("amount must be a non-zero number")
	}
	if !req.Type.Valid() {
		return nil, errValidation("type must be either Transfer, Deposit, or Withdrawal")
	}
	if req.Description == "" {
		return nil, errValidation("the description field cannot be empty")
	}
	switch req.Type {
	case models.TypeTransfer:
		if req.Amount.Sign() >= 0 {
			return nil, errValidation("your transfer amount must be negative")
		}
		if req.Counterparty == "" {
			return nil, errValidation("a transfer requires a counterparty username")
		}
		if !req.AccountType.Valid() {
			return nil, errValidation("account type must be one of the following: Checking, Savings, Investing")
		}
	case models.TypeDeposit:
		if req.Amount.Sign() < 0 {
			return nil, errValidation("a deposit amount must be positive")
		}
	case models.TypeWithdrawal:
		if req.Amount.Sign() > 0 {
			return nil, errValidation("a withdrawal amount must be negative")
		}
	}

	account, err := l.ownedAccount(ctx, req.UserID, req.AccountID)
	if err != nil {
		return nil, err
	}

	if req.Type == models.TypeTransfer {
		return l.transfer(ctx, account, req)
	}
	return l.postSingle(ctx, account, req)
}

// postSingle records one entry against one account under that account's
// lock, restarting from a fresh read if another process claimed the
// computed sequence in the meantime.
func (l *Ledger) postSingle(ctx context.Context, account models.Account, req Request) ([]models.Entry, error) {
	mu := l.getAccountLock(account.ID)
	mu.Lock()
	defer mu.Unlock()

	// The account may have been deleted while this request waited for the
	// lock; an entry written against it now would be orphaned.
	account, err := l.ownedAccount(ctx, req.UserID, account.ID)
	if err != nil {
		return nil, err
	}

	var (
		entries []models.Entry
		entry   models.Entry
	)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		entries, err = l.store.GetEntriesByAccount(ctx, account.ID)
		if err != nil {
			return nil, errStorage("could not read the account's transactions", err)
		}

		pos := nextPosition(entries, req.Amount)
		entry = models.Entry{
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

		err = l.store.CreateEntry(ctx, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, interfaces.ErrSequenceConflict) {
			return nil, errStorage("could not record the transaction", err)
		}
	}
	if err != nil {
		return nil, errConflict("the account was modified concurrently, please retry", err)
	}

	if err := l.attachEntry(ctx, account.ID, entry); err != nil {
		l.rollbackEntries(ctx, []string{entry.ID}, err)
		return nil, err
	}

	l.publish(topicEntryPosted, events.EntryPosted{
		EntryID:    entry.ID,
		AccountID:  entry.AccountID,
		Amount:     entry.Amount,
		Sequence:   entry.Sequence,
		Balance:    entry.Balance,
		OccurredAt: entry.CreatedAt,
	})
	l.log.Infof("%s of %s recorded on account %s (sequence %d)", req.Type, req.Amount, account.ID, entry.Sequence)

	return sortedEntries(append(entries, entry)), nil
}

// ListEntries returns the account's entries in ascending sequence order.
// It has no side effects.
func (l *Ledger) ListEntries(ctx context.Context, userID, accountID string) ([]models.Entry, error) {
	if _, err := l.ownedAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	entries, err := l.store.GetEntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, errStorage("could not read the account's transactions", err)
	}
	return sortedEntries(entries), nil
}

// GetEntry returns a single entry after checking the requester owns it.
func (l *Ledger) GetEntry(ctx context.Context, userID, entryID string) (models.Entry, error) {
	entry, err := l.store.GetEntry(ctx, entryID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Entry{}, errNotFound("that transaction doesn't exist")
	}
	if err != nil {
		return models.Entry{}, errStorage("could not read the transaction", err)
	}
	if entry.UserID != userID {
		return models.Entry{}, errAuthorization("you're not authorized to access that transaction")
	}
	return entry, nil
}

// DeleteEntry removes an entry. Only the entry with the highest sequence on
// its account may go: removing anything earlier would break the running
// balance of every entry after it. The account's cached balance is
// refreshed to the new last entry inside the same locked section.
func (l *Ledger) DeleteEntry(ctx context.Context, userID, entryID string) (models.Entry, error) {
	entry, err := l.GetEntry(ctx, userID, entryID)
	if err != nil {
		return models.Entry{}, err
	}

	mu := l.getAccountLock(entry.AccountID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := l.store.GetEntriesByAccount(ctx, entry.AccountID)
	if err != nil {
		return models.Entry{}, errStorage("could not read the account's transactions", err)
	}
	if last := lastPosition(entries); last.Sequence != entry.Sequence {
		return models.Entry{}, errValidation("only the most recent transaction on an account can be deleted")
	}

	if err := l.store.DeleteEntries(ctx, []string{entry.ID}); err != nil {
		return models.Entry{}, errStorage("could not delete the transaction", err)
	}

	account, err := l.store.FindAccountByID(ctx, entry.AccountID)
	if err != nil {
		return models.Entry{}, errStorage("could not read the account", err)
	}
	account.EntryIDs = removeID(account.EntryIDs, entry.ID)
	account.Balance = decimal.Zero
	for _, e := range entries {
		if e.Sequence == entry.Sequence-1 {
			account.Balance = e.Balance
			break
		}
	}
	if err := l.store.SaveAccount(ctx, account); err != nil {
		return models.Entry{}, errStorage("could not update the account", err)
	}

	l.log.Infof("entry %s deleted from account %s", entry.ID, entry.AccountID)
	return entry, nil
}

// ownedAccount resolves the account and checks the requesting identity owns
// it. Both failures are distinct: a missing account is not-found, a foreign
// one is an authorization error.
func (l *Ledger) ownedAccount(ctx context.Context, userID, accountID string) (models.Account, error) {
	account, err := l.store.FindAccountByID(ctx, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Account{}, errNotFound("that account doesn't exist")
	}
	if err != nil {
		return models.Account{}, errStorage("could not read the account", err)
	}
	if account.UserID != userID {
		return models.Account{}, errAuthorization("you're not authorized to access that resource")
	}
	return account, nil
}

// attachEntry re-reads the account under the already-held lock and appends
// the new entry reference plus the refreshed cached balance. The account
// record is a read optimization; the entry written before this call stays
// the source of truth.
func (l *Ledger) attachEntry(ctx context.Context, accountID string, entry models.Entry) error {
	account, err := l.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return errStorage("could not read the account", err)
	}
	account.EntryIDs = append(account.EntryIDs, entry.ID)
	account.Balance = entry.Balance
	if err := l.store.SaveAccount(ctx, account); err != nil {
		return errStorage("could not update the account", err)
	}
	return nil
}

// rollbackEntries takes back entries written by an operation that then
// failed, so a reported failure leaves nothing persisted. If the removal
// itself fails the ledger holds entries from a failed operation and an
// operator has to step in.
func (l *Ledger) rollbackEntries(ctx context.Context, ids []string, cause error) {
	if err := l.store.DeleteEntries(ctx, ids); err != nil {
		l.log.Errorf("ledger inconsistency: entries %v from a failed operation could not be removed: %v (operation failure: %v)", ids, err, cause)
	}
}

func (l *Ledger) publish(topic string, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(topic, event); err != nil {
		l.log.Warnf("publishing %s event: %v", topic, err)
	}
}

func sortedEntries(entries []models.Entry) []models.Entry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries
}

func entryIDs(entries []models.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
