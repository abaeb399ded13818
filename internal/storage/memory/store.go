package memory

import (
	"context"
	"sync"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

// Store is an in-memory implementation of interfaces.Store. It is
// thread-safe and hands out copies so callers can never mutate internal
// state; useful for tests and for running the service without a database.
type Store struct {
	mu       sync.Mutex
	users    map[string]models.User
	accounts map[string]models.Account
	entries  map[string]models.Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		accounts: make(map[string]models.Account),
		entries:  make(map[string]models.Entry),
	}
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return interfaces.ErrDuplicateID
	}
	for _, u := range s.users {
		if u.Username == user.Username {
			return interfaces.ErrDuplicateID
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return models.User{}, interfaces.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return models.User{}, interfaces.ErrNotFound
}

func (s *Store) SaveUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; !exists {
		return interfaces.ErrNotFound
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return interfaces.ErrDuplicateID
	}
	// one account per type per user, matching the database constraint
	for _, a := range s.accounts {
		if a.UserID == account.UserID && a.Type == account.Type {
			return interfaces.ErrDuplicateID
		}
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return models.Account{}, interfaces.ErrNotFound
	}
	return copyAccount(account), nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			result = append(result, copyAccount(a))
		}
	}
	return result, nil
}

func (s *Store) SaveAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; !exists {
		return interfaces.ErrNotFound
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return interfaces.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateEntry(ctx context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEntryLocked(entry)
}

// CreateEntries persists a batch atomically: either every entry passes the
// duplicate and sequence checks and all are stored, or none are.
func (s *Store) CreateEntries(ctx context.Context, entries []models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, exists := s.entries[e.ID]; exists {
			return interfaces.ErrDuplicateID
		}
		if s.sequenceTakenLocked(e.AccountID, e.Sequence) {
			return interfaces.ErrSequenceConflict
		}
	}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return models.Entry{}, interfaces.ErrNotFound
	}
	return entry, nil
}

func (s *Store) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Entry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) DeleteEntries(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

func (s *Store) createEntryLocked(entry models.Entry) error {
	if _, exists := s.entries[entry.ID]; exists {
		return interfaces.ErrDuplicateID
	}
	if s.sequenceTakenLocked(entry.AccountID, entry.Sequence) {
		return interfaces.ErrSequenceConflict
	}
	s.entries[entry.ID] = entry
	return nil
}

// sequenceTakenLocked is the duplicate-sequence guard behind the conflict
// sentinel. Callers must hold s.mu.
func (s *Store) sequenceTakenLocked(accountID string, sequence int64) bool {
	for _, e := range s.entries {
		if e.AccountID == accountID && e.Sequence == sequence {
			return true
		}
	}
	return false
}

func copyUser(u models.User) models.User {
	u.AccountIDs = append([]string(nil), u.AccountIDs...)
	return u
}

func copyAccount(a models.Account) models.Account {
	a.EntryIDs = append([]string(nil), a.EntryIDs...)
	return a
}

// Compile-time check: ensure Store implements interfaces.Store.
var _ interfaces.Store = (*Store)(nil)
