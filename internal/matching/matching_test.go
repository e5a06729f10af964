package matching_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oggyb/arena-signals/internal/cache"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/logger"
	"github.com/oggyb/arena-signals/internal/matching"
	"github.com/oggyb/arena-signals/internal/store"
	"github.com/oggyb/arena-signals/internal/testutil"
)

var base = time.Date(2026, time.October, 14, 16, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sent struct {
	addresses []string
	title     string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingDispatcher) Send(_ context.Context, addresses []string, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{addresses: append([]string(nil), addresses...), title: title})
	return nil
}

func (r *recordingDispatcher) calls() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

type fixture struct {
	st    *store.Store
	svc   *matching.Service
	clock *clock
	push  *recordingDispatcher
	cache *cache.RedisCache
}

// setupService wires the service over an isolated SQLite store and
// miniredis cache. Arena "quad" is open from base-1h to base+2h with a
// 100m radius; "hall" shares the window.
func setupService(t *testing.T) *fixture {
	t.Helper()

	clk := &clock{t: base}
	st := store.New(testutil.NewDB(t), store.Options{
		MaxAttempts:  50,
		RetryBackoff: time.Millisecond,
		Now:          clk.Now,
		Logger:       logger.Discard(),
	})
	_, client := testutil.NewRedis(t)
	rc := cache.FromClient(client)
	push := &recordingDispatcher{}

	svc := matching.New(matching.Deps{Store: st, Notifier: push, Counts: rc, Logger: logger.Discard()})

	for _, id := range []string{"quad", "hall"} {
		require.NoError(t, st.DB().Create(&db.Arena{
			Doc: db.Doc{ID: id, Version: 1}, Name: id,
			Latitude: 30.1742433, Longitude: 77.3068033, Radius: 100,
			StartTime: base.Add(-time.Hour), EndTime: base.Add(2 * time.Hour), IsActive: true,
		}).Error)
	}

	return &fixture{st: st, svc: svc, clock: clk, push: push, cache: rc}
}

func (f *fixture) register(t *testing.T, id, gender, sexuality string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), matching.Profile{
		ID: id, Name: id, Gender: gender, Sexuality: sexuality, Email: id + "@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.UpdatePushToken(context.Background(), id, "token-"+id))
}

func (f *fixture) activate(t *testing.T, arenaID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := f.svc.Activate(context.Background(), id, arenaID)
		require.NoError(t, err)
	}
}

func (f *fixture) user(t *testing.T, id string) db.User {
	t.Helper()
	var u db.User
	require.NoError(t, f.st.DB().Take(&u, "id = ?", id).Error)
	return u
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.st.DB().Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (f *fixture) signalExists(t *testing.T, arenaID, from, to string) bool {
	return f.count(t, &db.Signal{}, "id = ?", db.SignalID(arenaID, from, to)) == 1
}

func (f *fixture) matchCount(t *testing.T, arenaID, x, y string) int64 {
	return f.count(t, &db.Match{}, "id = ?", db.MatchID(arenaID, x, y))
}

// putSignal writes a signal document directly, as another client would.
func (f *fixture) putSignal(t *testing.T, arenaID, from, to string, at time.Time) {
	t.Helper()
	require.NoError(t, f.st.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		return tx.Set(&db.Signal{
			Doc:     db.Doc{ID: db.SignalID(arenaID, from, to)},
			ArenaID: arenaID, SenderID: from, ReceiverID: to, CreatedAt: at,
		})
	}))
}

func (f *fixture) block(t *testing.T, uid, blocked string) {
	t.Helper()
	require.NoError(t, f.st.RunTransaction(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: uid}}
		if _, err := tx.Get(ctx, u); err != nil {
			return err
		}
		u.BlockedUserIDs.Add(blocked)
		return tx.Set(u)
	}))
}
