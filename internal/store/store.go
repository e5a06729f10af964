// Package store runs optimistic-concurrency transactions over gorm tables.
//
// Every table row is a versioned document (see db.Doc). A transaction
// records the version of each document it reads; on commit it verifies that
// none of them changed and applies its writes conditionally on those
// versions. If another transaction committed first the body is re-run from
// scratch against fresh reads, up to a bounded number of attempts.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"
)

// ErrTransactionConflict is returned once the retry ceiling is exceeded.
var ErrTransactionConflict = errors.New("transaction conflict")

// errStale marks a read that no longer matches the committed version.
var errStale = errors.New("stale read")

// Record is implemented by every model embedding db.Doc.
type Record interface {
	TableName() string
	DocID() string
	DocVersion() int64
	SetDocVersion(v int64)
}

// Op is the kind of committed write.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed write. Doc is the written state, or the
// last read state for deletes.
type Change struct {
	Collection string
	ID         string
	Op         Op
	Doc        Record
}

// Publisher receives the changes of each committed transaction.
// It is called after commit and must not fail the transaction.
type Publisher interface {
	Publish(ctx context.Context, changes []Change)
}

// TxFunc is a transaction body. It must derive every write from reads made
// through tx so that it is safe to run more than once.
type TxFunc func(ctx context.Context, tx *Tx) error

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Now          func() time.Time
	Publisher    Publisher
	Logger       *slog.Logger
}

type Store struct {
	db          *gorm.DB
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	pub         Publisher
	log         *slog.Logger
}

// New wraps database. Zero options fall back to 5 attempts and a 5ms backoff.
func New(database *gorm.DB, opts Options) *Store {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		db:          database,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
		now:         opts.Now,
		pub:         opts.Publisher,
		log:         opts.Logger,
	}
}

// DB exposes the connection for read-side queries outside transactions.
func (s *Store) DB() *gorm.DB { return s.db }

// Now returns the store clock in UTC.
func (s *Store) Now() time.Time { return s.now().UTC() }

// SetPublisher installs the change publisher. Not safe to call while
// transactions are running.
func (s *Store) SetPublisher(p Publisher) { s.pub = p }

// RunTransaction executes fn and commits its writes atomically.
//
// A stale read, detected either inside fn or at commit, discards the
// attempt and runs fn again. Any other error from fn aborts with no writes.
func (s *Store) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := newTx(s)
		err := fn(ctx, tx)
		if err == nil {
			var changes []Change
			changes, err = tx.commit(ctx)
			if err == nil {
				s.publish(ctx, changes)
				return nil
			}
		}

		if !errors.Is(err, errStale) {
			return err
		}
		if attempt >= s.maxAttempts {
			return fmt.Errorf("%w: gave up after %d attempts", ErrTransactionConflict, attempt)
		}

		s.log.Debug("transaction conflict, retrying", "attempt", attempt)
		if err := s.wait(ctx, attempt); err != nil {
			return err
		}
	}
}

func (s *Store) wait(ctx context.Context, attempt int) error {
	d := time.Duration(attempt)*s.backoff + rand.N(s.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Store) publish(ctx context.Context, changes []Change) {
	if s.pub == nil || len(changes) == 0 {
		return
	}
	s.pub.Publish(ctx, changes)
}
