// Package memstore keeps every repository in process memory. It backs the
// service and handler tests: a transaction holds a store-wide lock for its
// lifetime, which stands in for the row locks Postgres would take, and a
// rollback restores the snapshot taken at Begin.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/models"
)

type data struct {
	accounts    map[uuid.UUID]*models.Account
	txs         []*models.Transaction
	keys        map[string]bool
	tasks       map[uuid.UUID]*models.Task
	subs        map[uuid.UUID]*models.TaskSubmission
	withdrawals map[uuid.UUID]*models.Withdrawal
	coinValues  map[string]models.CoinValueConfig
}

func newData() data {
	return data{
		accounts:    make(map[uuid.UUID]*models.Account),
		keys:        make(map[string]bool),
		tasks:       make(map[uuid.UUID]*models.Task),
		subs:        make(map[uuid.UUID]*models.TaskSubmission),
		withdrawals: make(map[uuid.UUID]*models.Withdrawal),
		coinValues:  make(map[string]models.CoinValueConfig),
	}
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.accounts {
		cp := *v
		c.accounts[k] = &cp
	}
	c.txs = slices.Clone(d.txs)
	for k, v := range d.keys {
		c.keys[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = cloneTask(v)
	}
	for k, v := range d.subs {
		cp := *v
		c.subs[k] = &cp
	}
	for k, v := range d.withdrawals {
		cp := *v
		c.withdrawals[k] = &cp
	}
	for k, v := range d.coinValues {
		c.coinValues[k] = v
	}
	return c
}

func cloneTask(t *models.Task) *models.Task {
	cp := *t
	cp.CompletedBy = slices.Clone(t.CompletedBy)
	return &cp
}

// Store is the shared state behind the repositories.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    data

	clock         clockwork.Clock
	coinValuesErr error
	trace         func(op string)
}

// New returns an empty store stamping rows with the wall clock.
func New() *Store {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock returns an empty store stamping rows with clock.
func NewWithClock(clock clockwork.Clock) *Store {
	return &Store{d: newData(), clock: clock}
}

func (s *Store) now() time.Time { return s.clock.Now() }

// Trace calls fn with the name of every row lock and insert that would touch
// an accounts row in Postgres, in call order. Tests use it to check lock order.
func (s *Store) Trace(fn func(op string)) {
	s.mu.Lock()
	s.trace = fn
	s.mu.Unlock()
}

func (s *Store) record(op string) {
	s.mu.Lock()
	fn := s.trace
	s.mu.Unlock()
	if fn != nil {
		fn(op)
	}
}

// Begin starts a transaction. It blocks until any other transaction ends.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	snap := s.d.clone()
	s.mu.Unlock()
	return &memTx{s: s, snap: snap}, nil
}

// autocommit runs a single write outside an explicit transaction.
func (s *Store) autocommit(fn func(d *data) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.d)
}

func (s *Store) locked(fn func(d *data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.d)
}

// FailCoinValues makes every coin value query return err until it is
// called again with nil.
func (s *Store) FailCoinValues(err error) {
	s.mu.Lock()
	s.coinValuesErr = err
	s.mu.Unlock()
}

// Accounts, Transactions, Tasks, Submissions, Withdrawals and CoinValues
// return repository views over the store.
func (s *Store) Accounts() *Accounts         { return &Accounts{s: s} }
func (s *Store) Transactions() *Transactions { return &Transactions{s: s} }
func (s *Store) Tasks() *Tasks               { return &Tasks{s: s} }
func (s *Store) Submissions() *Submissions   { return &Submissions{s: s} }
func (s *Store) Withdrawals() *Withdrawals   { return &Withdrawals{s: s} }
func (s *Store) CoinValues() *CoinValues     { return &CoinValues{s: s} }

type memTx struct {
	s    *Store
	snap data
	done bool
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return nil, pgx.ErrTxClosed }

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.mu.Lock()
	t.s.d = t.snap
	t.s.mu.Unlock()
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }
