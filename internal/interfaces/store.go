package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

// Sentinel errors every Store implementation maps its own failures onto, so
// the engine can classify them without knowing the backend.
var (
	// ErrNotFound signals the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID signals a create with an id that is already taken.
	ErrDuplicateID = errors.New("record id already exists")
	// ErrSequenceConflict signals a write carrying a (account, sequence)
	// pair another writer already claimed.
	ErrSequenceConflict = errors.New("sequence already taken for account")
)

// Store is the durable record store the ledger engine reads and writes
// through. Implementations must be safe for concurrent use; the engine
// supplies its own per-account serialization on top.
type Store interface {
	CreateUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	SaveUser(ctx context.Context, user models.User) error

	CreateAccount(ctx context.Context, account models.Account) error
	FindAccountByID(ctx context.Context, id string) (models.Account, error)
	AccountsByUser(ctx context.Context, userID string) ([]models.Account, error)
	SaveAccount(ctx context.Context, account models.Account) error
	DeleteAccount(ctx context.Context, id string) error

	CreateEntry(ctx context.Context, entry models.Entry) error
	CreateEntries(ctx context.Context, entries []models.Entry) error
	GetEntry(ctx context.Context, id string) (models.Entry, error)
	GetEntriesByAccount(ctx context.Context, accountID string) ([]models.Entry, error)
	DeleteEntries(ctx context.Context, ids []string) error
}
