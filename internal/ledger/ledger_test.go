package ledger_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/ledger"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/storage/memory"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fixedSource struct{ name string }

func (f fixedSource) Counterparty() string { return f.name }

func newTestLedger(t *testing.T) (*ledger.Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.New(store, nil, fixedSource{name: "Acme Corp"}, testLogger()), store
}

func seedUser(t *testing.T, svc *ledger.Ledger, store *memory.Store, username string) models.User {
	t.Helper()
	user := models.User{ID: "user-" + username, Username: username, Email: username + "@example.com"}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func mustAccount(t *testing.T, svc *ledger.Ledger, user models.User, accountType models.AccountType) models.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), user.ID, string(accountType)+" account", accountType)
	if err != nil {
		t.Fatalf("create %s account for %s: %v", accountType, user.Username, err)
	}
	return account
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func wantKind(t *testing.T, err error, kind ledger.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a %s error, got nil", kind)
	}
	if got := ledger.KindOf(err); got != kind {
		t.Fatalf("expected a %s error, got %s (%v)", kind, got, err)
	}
}

func TestDepositFirstEntry(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)

	entries, err := svc.CreateDeposit(context.Background(), alice.ID, account.ID, mustDec(t, "17.35"), "A test transaction")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Sequence != 0 {
		t.Errorf("expected sequence 0, got %d", entry.Sequence)
	}
	if !entry.Balance.Equal(mustDec(t, "17.35")) {
		t.Errorf("expected balance 17.35, got %s", entry.Balance)
	}
	if entry.Description != "A test transaction" {
		t.Errorf("unexpected description %q", entry.Description)
	}

	saved, err := store.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("read account: %v", err)
	}
	if !saved.Balance.Equal(mustDec(t, "17.35")) {
		t.Errorf("cached account balance not refreshed: %s", saved.Balance)
	}
	if len(saved.EntryIDs) != 1 || saved.EntryIDs[0] != entry.ID {
		t.Errorf("entry id not attached to account: %v", saved.EntryIDs)
	}
}

func TestWithdrawalRunningBalance(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "17.35"), "Opening deposit"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	entries, err := svc.CreateWithdrawal(ctx, alice.ID, account.ID, mustDec(t, "-5.00"), "Coffee")
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	last := entries[1]
	if last.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", last.Sequence)
	}
	if !last.Balance.Equal(mustDec(t, "12.35")) {
		t.Errorf("expected balance 12.35, got %s", last.Balance)
	}
}

func TestPostValidation(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	base := ledger.Request{
		UserID:      alice.ID,
		AccountID:   account.ID,
		Description: "Something",
	}

	tests := []struct {
		name   string
		mutate func(*ledger.Request)
	}{
		{"zero amount", func(r *ledger.Request) {
			r.Type = models.TypeDeposit
		}},
		{"unknown type", func(r *ledger.Request) {
			r.Amount = mustDec(t, "10")
			r.Type = "Loan"
		}},
		{"empty description", func(r *ledger.Request) {
			r.Amount = mustDec(t, "10")
			r.Type = models.TypeDeposit
			r.Description = ""
		}},
		{"negative deposit", func(r *ledger.Request) {
			r.Amount = mustDec(t, "-10")
			r.Type = models.TypeDeposit
		}},
		{"positive withdrawal", func(r *ledger.Request) {
			r.Amount = mustDec(t, "10")
			r.Type = models.TypeWithdrawal
		}},
		{"positive transfer", func(r *ledger.Request) {
			r.Amount = mustDec(t, "40")
			r.Type = models.TypeTransfer
			r.Counterparty = "bob"
			r.AccountType = models.AccountSavings
		}},
		{"transfer without counterparty", func(r *ledger.Request) {
			r.Amount = mustDec(t, "-40")
			r.Type = models.TypeTransfer
			r.AccountType = models.AccountSavings
		}},
		{"transfer with bad account type", func(r *ledger.Request) {
			r.Amount = mustDec(t, "-40")
			r.Type = models.TypeTransfer
			r.Counterparty = "bob"
			r.AccountType = "Offshore"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := svc.Post(ctx, req)
			wantKind(t, err, ledger.KindValidation)
		})
	}

	// none of the rejected requests may have touched the ledger
	entries, err := store.GetEntriesByAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("validation failures persisted %d entries", len(entries))
	}
}

func TestDepositUnknownAccount(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")

	_, err := svc.CreateDeposit(context.Background(), alice.ID, "no-such-account", mustDec(t, "10"), "Deposit")
	wantKind(t, err, ledger.KindNotFound)
}

func TestDepositForeignAccount(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	bob := seedUser(t, svc, store, "bob")
	account := mustAccount(t, svc, alice, models.AccountChecking)

	_, err := svc.CreateDeposit(context.Background(), bob.ID, account.ID, mustDec(t, "10"), "Deposit")
	wantKind(t, err, ledger.KindAuthorization)
}

func TestTransferMirrorsLegs(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	bob := seedUser(t, svc, store, "bob")
	aliceChecking := mustAccount(t, svc, alice, models.AccountChecking)
	bobSavings := mustAccount(t, svc, bob, models.AccountSavings)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, alice.ID, aliceChecking.ID, mustDec(t, "100"), "Opening deposit"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	entries, err := svc.CreateTransfer(ctx, alice.ID, aliceChecking.ID, mustDec(t, "-40"), "Rent", "bob", models.AccountSavings)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries on the initiating account, got %d", len(entries))
	}
	leg := entries[1]
	if !leg.Amount.Equal(mustDec(t, "-40")) || !leg.Balance.Equal(mustDec(t, "60")) {
		t.Errorf("initiator leg: expected amount -40 balance 60, got %s / %s", leg.Amount, leg.Balance)
	}
	if leg.Counterparty != "bob" {
		t.Errorf("initiator leg counterparty: expected bob, got %q", leg.Counterparty)
	}

	bobEntries, err := store.GetEntriesByAccount(ctx, bobSavings.ID)
	if err != nil {
		t.Fatalf("read counterparty entries: %v", err)
	}
	if len(bobEntries) != 1 {
		t.Fatalf("expected 1 counterparty entry, got %d", len(bobEntries))
	}
	cp := bobEntries[0]
	if !cp.Amount.Equal(mustDec(t, "40")) || !cp.Balance.Equal(mustDec(t, "40")) {
		t.Errorf("counterparty leg: expected amount 40 balance 40, got %s / %s", cp.Amount, cp.Balance)
	}
	if cp.Sequence != 0 {
		t.Errorf("counterparty leg: expected sequence 0, got %d", cp.Sequence)
	}
	if cp.Description != "Transfer from alice" {
		t.Errorf("counterparty leg description: got %q", cp.Description)
	}
	if cp.Counterparty != "alice" {
		t.Errorf("counterparty leg counterparty: got %q", cp.Counterparty)
	}

	// both cached balances reflect only each account's own entries
	a, _ := store.FindAccountByID(ctx, aliceChecking.ID)
	b, _ := store.FindAccountByID(ctx, bobSavings.ID)
	if !a.Balance.Equal(mustDec(t, "60")) {
		t.Errorf("initiator cached balance: expected 60, got %s", a.Balance)
	}
	if !b.Balance.Equal(mustDec(t, "40")) {
		t.Errorf("counterparty cached balance: expected 40, got %s", b.Balance)
	}
}

func TestTransferToSelfRejected(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "100"), "Opening deposit"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := svc.CreateTransfer(ctx, alice.ID, account.ID, mustDec(t, "-40"), "Round trip", "alice", models.AccountChecking)
	wantKind(t, err, ledger.KindValidation)

	entries, _ := store.GetEntriesByAccount(ctx, account.ID)
	if len(entries) != 1 {
		t.Fatalf("self-transfer persisted an entry: %d entries", len(entries))
	}
}

func TestTransferUnknownCounterparty(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "100"), "Opening deposit"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := svc.CreateTransfer(ctx, alice.ID, account.ID, mustDec(t, "-40"), "Rent", "ghost", models.AccountSavings)
	wantKind(t, err, ledger.KindNotFound)

	// bob exists but has no Savings account
	bob := seedUser(t, svc, store, "bob")
	mustAccount(t, svc, bob, models.AccountChecking)
	_, err = svc.CreateTransfer(ctx, alice.ID, account.ID, mustDec(t, "-40"), "Rent", "bob", models.AccountSavings)
	wantKind(t, err, ledger.KindNotFound)
}

func TestListEntriesIdempotent(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	for _, amount := range []string{"10", "-3", "7.50"} {
		d := mustDec(t, amount)
		req := ledger.Request{UserID: alice.ID, AccountID: account.ID, Amount: d, Description: "Movement", Type: models.TypeDeposit}
		if d.Sign() < 0 {
			req.Type = models.TypeWithdrawal
		}
		if _, err := svc.Post(ctx, req); err != nil {
			t.Fatalf("post %s: %v", amount, err)
		}
	}

	first, err := svc.ListEntries(ctx, alice.ID, account.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := svc.ListEntries(ctx, alice.ID, account.ID)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 entries on both reads, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Sequence != int64(i) {
			t.Errorf("entries not in sequence order at %d: %d", i, first[i].Sequence)
		}
		if first[i].ID != second[i].ID {
			t.Errorf("reads disagree at %d", i)
		}
	}
}

func TestDeleteEntryOnlyLatest(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	first, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "10"), "First")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	second, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "5"), "Second")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err = svc.DeleteEntry(ctx, alice.ID, first[0].ID)
	wantKind(t, err, ledger.KindValidation)

	deleted, err := svc.DeleteEntry(ctx, alice.ID, second[1].ID)
	if err != nil {
		t.Fatalf("delete latest: %v", err)
	}
	if deleted.ID != second[1].ID {
		t.Fatalf("deleted the wrong entry: %s", deleted.ID)
	}

	saved, _ := store.FindAccountByID(ctx, account.ID)
	if !saved.Balance.Equal(mustDec(t, "10")) {
		t.Errorf("cached balance after delete: expected 10, got %s", saved.Balance)
	}
	remaining, _ := store.GetEntriesByAccount(ctx, account.ID)
	if len(remaining) != 1 || remaining[0].ID != first[0].ID {
		t.Errorf("unexpected remaining entries: %v", remaining)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	if _, err := svc.CreateDeposit(ctx, alice.ID, account.ID, mustDec(t, "10"), "Deposit"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	deleted, err := svc.DeleteAccount(ctx, alice.ID, account.ID)
	if err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if deleted.ID != account.ID {
		t.Fatalf("deleted the wrong account: %s", deleted.ID)
	}

	if _, err := store.FindAccountByID(ctx, account.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("account still present after delete: %v", err)
	}
	entries, _ := store.GetEntriesByAccount(ctx, account.ID)
	if len(entries) != 0 {
		t.Errorf("entries survived the cascade: %d", len(entries))
	}
	user, _ := store.FindUserByID(ctx, alice.ID)
	for _, id := range user.AccountIDs {
		if id == account.ID {
			t.Errorf("account still attached to its owner")
		}
	}
}

func TestCreateAccountOnePerType(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")

	mustAccount(t, svc, alice, models.AccountChecking)
	_, err := svc.CreateAccount(context.Background(), alice.ID, "Second checking", models.AccountChecking)
	wantKind(t, err, ledger.KindValidation)

	// a different type is fine
	mustAccount(t, svc, alice, models.AccountSavings)
}

func TestConcurrentCreateAccountSameType(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAccount(ctx, alice.ID, "Everyday", models.AccountChecking)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		wantKind(t, err, ledger.KindValidation)
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 checking account to be created, got %d", created)
	}
	accounts, _ := store.AccountsByUser(ctx, alice.ID)
	if len(accounts) != 1 {
		t.Fatalf("store holds %d accounts for the user", len(accounts))
	}
}

func TestConcurrentDeposits(t *testing.T) {
	svc, store := newTestLedger(t)
	alice := seedUser(t, svc, store, "alice")
	account := mustAccount(t, svc, alice, models.AccountChecking)
	ctx := context.Background()

	const n = 64
	want := decimal.Zero
	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		amounts[i] = decimal.New(int64(100+i*7), -2) // 1.00, 1.07, 1.14, ...
		want = want.Add(amounts[i])
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(amount decimal.Decimal) {
			defer wg.Done()
			if _, err := svc.CreateDeposit(ctx, alice.ID, account.ID, amount, "Concurrent deposit"); err != nil {
				errs <- err
			}
		}(amounts[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent deposit failed: %v", err)
	}

	entries, err := svc.ListEntries(ctx, alice.ID, account.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	running := decimal.Zero
	for i, e := range entries {
		if e.Sequence != int64(i) {
			t.Fatalf("sequence gap at %d: got %d", i, e.Sequence)
		}
		running = running.Add(e.Amount).Round(2)
		if !e.Balance.Equal(running) {
			t.Fatalf("balance recurrence broken at sequence %d: expected %s, got %s", i, running, e.Balance)
		}
	}
	if !entries[n-1].Balance.Equal(want) {
		t.Fatalf("final balance: expected %s, got %s", want, entries[n-1].Balance)
	}

	saved, _ := store.FindAccountByID(ctx, account.ID)
	if !saved.Balance.Equal(want) {
		t.Fatalf("cached balance: expected %s, got %s", want, saved.Balance)
	}
}
