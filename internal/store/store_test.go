package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/logger"
	"github.com/oggyb/arena-signals/internal/store"
	"github.com/oggyb/arena-signals/internal/testutil"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []store.Change
}

func (p *recordingPublisher) Publish(_ context.Context, changes []store.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, changes...)
}

func setupStore(t *testing.T, attempts int) (*store.Store, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	s := store.New(testutil.NewDB(t), store.Options{
		MaxAttempts: attempts,
		Publisher:   pub,
		Logger:      logger.Discard(),
	})
	return s, pub
}

func createUser(t *testing.T, s *store.Store, id string, points int) {
	t.Helper()
	require.NoError(t, s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: id}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		u.BraveryPoints = points
		return tx.Set(u)
	}))
}

func loadUser(t *testing.T, s *store.Store, id string) db.User {
	t.Helper()
	var u db.User
	require.NoError(t, s.DB().Take(&u, "id = ?", id).Error)
	return u
}

func addPoints(s *store.Store, id string, delta int) store.TxFunc {
	return func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: id}}
		found, err := tx.Get(ctx, u)
		if err != nil {
			return err
		}
		if !found {
			return errors.New("missing user")
		}
		u.BraveryPoints += delta
		return tx.Set(u)
	}
}

func TestRunTransaction_CreateThenUpdateBumpsVersion(t *testing.T) {
	s, pub := setupStore(t, 5)
	createUser(t, s, "u1", 10)

	u := loadUser(t, s, "u1")
	assert.Equal(t, int64(1), u.Version)

	require.NoError(t, s.RunTransaction(context.Background(), addPoints(s, "u1", 5)))

	u = loadUser(t, s, "u1")
	assert.Equal(t, int64(2), u.Version)
	assert.Equal(t, 15, u.BraveryPoints)

	require.Len(t, pub.changes, 2)
	assert.Equal(t, store.OpCreated, pub.changes[0].Op)
	assert.Equal(t, store.OpUpdated, pub.changes[1].Op)
	assert.Equal(t, "users", pub.changes[1].Collection)
}

func TestRunTransaction_ReadYourWrites(t *testing.T) {
	s, _ := setupStore(t, 5)
	createUser(t, s, "u1", 0)

	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		if err := addPoints(s, "u1", 10)(ctx, tx); err != nil {
			return err
		}
		// second credit sees the first one
		return addPoints(s, "u1", 20)(ctx, tx)
	})
	require.NoError(t, err)
	assert.Equal(t, 30, loadUser(t, s, "u1").BraveryPoints)
}

func TestRunTransaction_RetriesAfterConcurrentWrite(t *testing.T) {
	s, _ := setupStore(t, 5)
	createUser(t, s, "u1", 0)

	attempts := 0
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		attempts++
		u := &db.User{Doc: db.Doc{ID: "u1"}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		if attempts == 1 {
			// another writer commits between our read and our commit
			require.NoError(t, s.RunTransaction(ctx, addPoints(s, "u1", 7)))
		}
		u.BraveryPoints += 3
		return tx.Set(u)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 10, loadUser(t, s, "u1").BraveryPoints, "no lost update")
}

func TestRunTransaction_ReadOnlyDocumentsAreValidated(t *testing.T) {
	s, _ := setupStore(t, 5)
	createUser(t, s, "reader", 0)
	createUser(t, s, "watched", 1)

	attempts := 0
	var seen int
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		attempts++
		w := &db.User{Doc: db.Doc{ID: "watched"}}
		if _, err := tx.Get(ctx, w); err != nil {
			return err
		}
		seen = w.BraveryPoints
		if attempts == 1 {
			require.NoError(t, s.RunTransaction(ctx, addPoints(s, "watched", 1)))
		}
		return addPoints(s, "reader", seen)(ctx, tx)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, loadUser(t, s, "reader").BraveryPoints)
}

func TestRunTransaction_ConcurrentCreateConflicts(t *testing.T) {
	s, _ := setupStore(t, 5)

	attempts := 0
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		attempts++
		m := &db.Match{Doc: db.Doc{ID: "a_x_y"}}
		found, err := tx.Get(ctx, m)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		if attempts == 1 {
			require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, other *store.Tx) error {
				mm := &db.Match{Doc: db.Doc{ID: "a_x_y"}, ArenaID: "a", UserA: "x", UserB: "y"}
				if _, err := other.Get(ctx, mm); err != nil {
					return err
				}
				return other.Set(mm)
			}))
		}
		m.ArenaID, m.UserA, m.UserB = "a", "x", "y"
		return tx.Set(m)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "second attempt observes the existing match")

	var count int64
	require.NoError(t, s.DB().Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunTransaction_RetryCeiling(t *testing.T) {
	s, _ := setupStore(t, 3)
	createUser(t, s, "u1", 0)

	attempts := 0
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		attempts++
		u := &db.User{Doc: db.Doc{ID: "u1"}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		require.NoError(t, s.RunTransaction(ctx, addPoints(s, "u1", 1)))
		u.BraveryPoints = 100
		return tx.Set(u)
	})

	require.ErrorIs(t, err, store.ErrTransactionConflict)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, loadUser(t, s, "u1").BraveryPoints)
}

func TestRunTransaction_ErrorAbortsWithoutWrites(t *testing.T) {
	s, pub := setupStore(t, 5)
	boom := errors.New("boom")

	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: "ghost"}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		if err := tx.Set(u); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, s.DB().Model(&db.User{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, pub.changes)
}

func TestRunTransaction_DeleteIsConditional(t *testing.T) {
	s, pub := setupStore(t, 5)
	createUser(t, s, "u1", 0)

	require.NoError(t, s.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: "u1"}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		if err := tx.Delete(u); err != nil {
			return err
		}
		found, err := tx.Get(ctx, &db.User{Doc: db.Doc{ID: "u1"}})
		require.NoError(t, err)
		assert.False(t, found, "buffered delete is visible")

		// deleting a missing document is a no-op
		return tx.Delete(&db.Signal{Doc: db.Doc{ID: "nope"}})
	}))

	var count int64
	require.NoError(t, s.DB().Model(&db.User{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, store.OpDeleted, pub.changes[len(pub.changes)-1].Op)
}

func TestRunTransaction_ConcurrentIncrementsAllLand(t *testing.T) {
	s, _ := setupStore(t, 50)
	createUser(t, s, "hot", 0)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunTransaction(context.Background(), addPoints(s, "hot", 1))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, writers, loadUser(t, s, "hot").BraveryPoints)
}

func TestRunTransaction_HonorsContext(t *testing.T) {
	s, _ := setupStore(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunTransaction(ctx, func(context.Context, *store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
