package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

// Store is the PostgreSQL implementation of interfaces.Store. The unique
// index on (account_id, sequence) is what turns a lost read-modify-write
// race into ErrSequenceConflict; see schema.sql.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (id, username, email, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	return mapError(err)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) scanUser(ctx context.Context, row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	const query = `SELECT id FROM accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, user.ID)
	if err != nil {
		return models.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return models.User{}, err
		}
		user.AccountIDs = append(user.AccountIDs, id)
	}
	return user, rows.Err()
}

// SaveUser updates the mutable user fields. The account-id set is derived
// from the accounts table, so there is nothing to write for it here.
func (s *Store) SaveUser(ctx context.Context, user models.User) error {
	const query = `UPDATE users SET username = $2, email = $3, password_hash = $4 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return interfaces.ErrNotFound
	}
	return err
}

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, user_id, name, type, balance, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query, account.ID, account.UserID, account.Name, account.Type, account.Balance, account.CreatedAt)
	return mapError(err)
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (models.Account, error) {
	const query = `SELECT id, user_id, name, type, balance, created_at FROM accounts WHERE id = $1`

	var account models.Account
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&account.ID, &account.UserID, &account.Name, &account.Type, &account.Balance, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}

	account.EntryIDs, err = s.entryIDs(ctx, account.ID)
	return account, err
}

func (s *Store) AccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	const query = `SELECT id, user_id, name, type, balance, created_at FROM accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.UserID, &account.Name, &account.Type, &account.Balance, &account.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		if accounts[i].EntryIDs, err = s.entryIDs(ctx, accounts[i].ID); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// SaveAccount writes the mutable account fields. The entry-id set is
// derived from ledger_entries, so only the cached balance and name persist.
func (s *Store) SaveAccount(ctx context.Context, account models.Account) error {
	const query = `UPDATE accounts SET name = $2, balance = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, account.ID, account.Name, account.Balance)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return interfaces.ErrNotFound
	}
	return err
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return interfaces.ErrNotFound
	}
	return err
}

func (s *Store) CreateEntry(ctx context.Context, entry models.Entry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		entry.ID, entry.AccountID, entry.UserID, entry.Amount, entry.Description,
		entry.Counterparty, entry.Sequence, entry.Balance, entry.CreatedAt)
	return mapError(err)
}

// CreateEntries persists the batch inside a single database transaction, so
// either every entry lands or none do.
func (s *Store) CreateEntries(ctx context.Context, entries []models.Entry) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	for _, entry := range entries {
		_, err = dbTx.ExecContext(ctx, insertEntry,
			entry.ID, entry.AccountID, entry.UserID, entry.Amount, entry.Description,
			entry.Counterparty, entry.Sequence, entry.Balance, entry.CreatedAt)
		if err != nil {
			return mapError(err)
		}
	}
	err = dbTx.Commit()
	return err
}

func (s *Store) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	const query = `SELECT id, account_id, user_id, amount, description, counterparty, sequence, balance, created_at
	FROM ledger_entries WHERE id = $1`

	var entry models.Entry
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.AccountID, &entry.UserID, &entry.Amount, &entry.Description,
		&entry.Counterparty, &entry.Sequence, &entry.Balance, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Entry{}, interfaces.ErrNotFound
	}
	return entry, err
}

func (s *Store) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.Entry, error) {
	const query = `SELECT id, account_id, user_id, amount, description, counterparty, sequence, balance, created_at
	FROM ledger_entries WHERE account_id = $1 ORDER BY sequence`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.UserID, &entry.Amount, &entry.Description,
			&entry.Counterparty, &entry.Sequence, &entry.Balance, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteEntries(ctx context.Context, ids []string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

const insertEntry = `INSERT INTO ledger_entries (id, account_id, user_id, amount, description, counterparty, sequence, balance, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *Store) entryIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM ledger_entries WHERE account_id = $1 ORDER BY sequence`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// mapError translates unique-violation failures onto the store sentinels so
// the engine can tell a sequence race from a replayed write.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "sequence") {
			return interfaces.ErrSequenceConflict
		}
		return interfaces.ErrDuplicateID
	}
	return err
}

var _ interfaces.Store = (*Store)(nil)
