package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/feed"
	"github.com/oggyb/arena-signals/internal/logger"
	"github.com/oggyb/arena-signals/internal/matching"
	"github.com/oggyb/arena-signals/internal/store"
	"github.com/oggyb/arena-signals/internal/testutil"
)

func TestHandleEvent_IgnoresUnrelated(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	res, err := f.svc.HandleEvent(ctx, feed.Event{Collection: "users", ID: "u", Op: store.OpCreated})
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = f.svc.HandleEvent(ctx, feed.Event{Collection: "signals", ID: "quad_u_v", Op: store.OpDeleted})
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = f.svc.HandleEvent(ctx, feed.Event{Collection: "signals", ID: "quad_u_v", Op: store.OpCreated})
	assert.Error(t, err)
}

// TestTriggerReconcilesSignalsFromFeed runs the server-side path end to end:
// a signal document written without the resolver is matched by the trigger.
func TestTriggerReconcilesSignalsFromFeed(t *testing.T) {
	f := setupService(t)
	f.register(t, "u", "male", "")
	f.register(t, "v", "female", "")
	f.activate(t, "quad", "u")

	_, client := testutil.NewRedis(t)
	fd := feed.New(client, "test", logger.Discard())
	f.st.SetPublisher(fd)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sub, err := fd.Subscribe(ctx, "signals")
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	done := make(chan error, 1)
	go func() { done <- f.svc.RunTrigger(ctx, sub.Events()) }()

	res, err := f.svc.TrySend(ctx, "quad", "u", "v")
	require.NoError(t, err)
	require.Equal(t, matching.OutcomePending, res.Outcome)

	f.putSignal(t, "quad", "v", "u", base)

	require.Eventually(t, func() bool {
		return f.matchCount(t, "quad", "u", "v") == 1
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.count(t, &db.Signal{}, "1 = 1") == 0
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 30, f.user(t, "u").BraveryPoints)
	assert.Equal(t, 20, f.user(t, "v").BraveryPoints)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not stop")
	}
}
