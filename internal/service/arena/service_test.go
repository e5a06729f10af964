package arena_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/cache"
	"github.com/oggyb/arena-signals/internal/config"
	svcErr "github.com/oggyb/arena-signals/internal/errors"
	"github.com/oggyb/arena-signals/internal/feed"
	"github.com/oggyb/arena-signals/internal/logger"
	"github.com/oggyb/arena-signals/internal/server"
	"github.com/oggyb/arena-signals/internal/service/arena"
	"github.com/oggyb/arena-signals/internal/testutil"
)

//
// Test helpers
//

var base = time.Date(2026, time.October, 14, 16, 0, 0, 0, time.UTC)

const (
	centerLat = 30.1742433
	centerLon = 77.3068033
)

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

type pushRecorder struct {
	mu     sync.Mutex
	titles []string
}

func (p *pushRecorder) Send(_ context.Context, addresses []string, title, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range addresses {
		p.titles = append(p.titles, title)
	}
	return nil
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.titles)
}

type env struct {
	client *arena.Client
	appCtx *app.AppContext
	clock  *clock
	push   *pushRecorder
}

// setupServer wires the full stack over SQLite, miniredis and a bufconn
// listener, with one open arena "quad" of radius 100m.
func setupServer(t *testing.T) *env {
	t.Helper()

	_, rdb := testutil.NewRedis(t)
	clk := &clock{t: base}
	push := &pushRecorder{}
	log := logger.Discard()

	cfg := config.New()
	cfg.Store.MaxAttempts = 50
	cfg.Store.RetryBackoff = time.Millisecond

	appCtx := app.New(app.Deps{
		Config:     cfg,
		DB:         testutil.NewDB(t),
		RedisCache: cache.FromClient(rdb),
		Feed:       feed.New(rdb, "test", log),
		Notifier:   push,
		Logger:     log,
		Now:        clk.Now,
	})

	_, err := appCtx.Arenas.Create(context.Background(), "quad", arenas.Input{
		Name:      "Campus Quad",
		Latitude:  centerLat,
		Longitude: centerLon,
		Radius:    100,
		StartTime: base.Add(-time.Hour).Format(time.RFC3339),
		EndTime:   base.Add(2 * time.Hour).Format(time.RFC3339),
		IsActive:  true,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := server.New(log, arena.NewRegistrar(appCtx))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &env{client: arena.NewClient(conn), appCtx: appCtx, clock: clk, push: push}
}

func (e *env) register(t *testing.T, id, gender string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.client.Register(ctx, &arena.RegisterRequest{UserID: id, Name: id, Gender: gender, Email: id + "@example.com"})
	require.NoError(t, err)
	_, err = e.client.UpdatePushToken(ctx, &arena.UpdatePushTokenRequest{UserID: id, PushToken: "ExponentPushToken[" + id + "]"})
	require.NoError(t, err)
}

func (e *env) enter(t *testing.T, id string) *arena.EnterResponse {
	t.Helper()
	resp, err := e.client.Enter(context.Background(), &arena.EnterRequest{
		UserID: id, ArenaID: "quad", Position: &arena.Position{Latitude: centerLat, Longitude: centerLon},
	})
	require.NoError(t, err)
	return resp
}

func assertStatus(t *testing.T, err error, code codes.Code, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, status.Code(err), err.Error())
	if reason != "" {
		assert.Equal(t, reason, svcErr.Reason(err))
	}
}

//
// Tests
//

func TestEnter(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()
	e.register(t, "u", "male")

	_, err := e.client.Enter(ctx, &arena.EnterRequest{UserID: "u", ArenaID: "quad"})
	assertStatus(t, err, codes.PermissionDenied, "PERMISSION_DENIED")

	_, err = e.client.Enter(ctx, &arena.EnterRequest{
		UserID: "u", ArenaID: "quad", Position: &arena.Position{Latitude: centerLat + 0.002, Longitude: centerLon},
	})
	assertStatus(t, err, codes.FailedPrecondition, "OUTSIDE_ARENA")
	info := svcErr.Info(err)
	require.NotNil(t, info)
	assert.NotEmpty(t, info.GetMetadata()["distance_meters"])

	_, err = e.client.Enter(ctx, &arena.EnterRequest{UserID: "u", ArenaID: "nowhere", Position: &arena.Position{}})
	assertStatus(t, err, codes.NotFound, "ARENA_NOT_FOUND")

	_, err = e.client.Enter(ctx, &arena.EnterRequest{UserID: "u"})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	resp := e.enter(t, "u")
	assert.Equal(t, 3, resp.SignalsRemaining)
	assert.Equal(t, 10, resp.BraveryPoints)
	assert.False(t, resp.Reactivated)

	resp = e.enter(t, "u")
	assert.True(t, resp.Reactivated)
	assert.Equal(t, 10, resp.BraveryPoints)

	e.clock.Advance(3 * time.Hour)
	_, err = e.client.Enter(ctx, &arena.EnterRequest{
		UserID: "u", ArenaID: "quad", Position: &arena.Position{Latitude: centerLat, Longitude: centerLon},
	})
	assertStatus(t, err, codes.FailedPrecondition, "ARENA_CLOSED")
}

func TestListArenas(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()

	list, err := e.client.ListArenas(ctx, &arena.ListArenasRequest{})
	require.NoError(t, err)
	require.Len(t, list.Arenas, 1)
	assert.Equal(t, "quad", list.Arenas[0].ID)
	assert.True(t, list.Arenas[0].Open)
	assert.Equal(t, base.Add(2*time.Hour).UnixMilli(), list.Arenas[0].EndTimeUnix)

	e.clock.Advance(3 * time.Hour)
	got, err := e.client.GetArena(ctx, &arena.GetArenaRequest{ArenaID: "quad"})
	require.NoError(t, err)
	assert.False(t, got.Arena.Open)

	_, err = e.client.GetArena(ctx, &arena.GetArenaRequest{ArenaID: "nowhere"})
	assertStatus(t, err, codes.NotFound, "ARENA_NOT_FOUND")
}

func TestRegister_Duplicate(t *testing.T) {
	e := setupServer(t)
	e.register(t, "u", "male")

	_, err := e.client.Register(context.Background(), &arena.RegisterRequest{UserID: "u", Name: "again"})
	assertStatus(t, err, codes.AlreadyExists, "USER_EXISTS")

	_, err = e.client.Register(context.Background(), &arena.RegisterRequest{UserID: "w", Name: "w", Sexuality: "pan"})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_USER")
}

// TestSignalToChatFlow walks the whole product loop over gRPC: activate,
// signal, reciprocate, chat, expire, extend and meet in person.
func TestSignalToChatFlow(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()
	e.register(t, "u", "male")
	e.register(t, "v", "female")
	e.enter(t, "u")
	e.enter(t, "v")

	roster, err := e.client.ListActiveUsers(ctx, &arena.ListActiveUsersRequest{ArenaID: "quad", ViewerID: "u"})
	require.NoError(t, err)
	require.Len(t, roster.Users, 1)
	assert.Equal(t, "v", roster.Users[0].User.ID)

	sent, err := e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "pending", sent.Outcome)
	assert.Equal(t, 2, sent.SignalsRemaining)

	count, err := e.client.CountIncomingSignals(ctx, &arena.CountIncomingSignalsRequest{UserID: "v", ArenaID: "quad"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count.Count)

	incoming, err := e.client.ListIncomingSignals(ctx, &arena.ListIncomingSignalsRequest{UserID: "v", ArenaID: "quad"})
	require.NoError(t, err)
	require.Len(t, incoming.Signals, 1)
	assert.Equal(t, "u", incoming.Signals[0].SenderID)

	// v watches matches before reciprocating
	watchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stream, err := e.client.Watch(watchCtx, &arena.WatchRequest{View: arena.ViewMatches, UserID: "v"})
	require.NoError(t, err)
	snap, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, snap.Matches)

	matched, err := e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "v", ReceiverID: "u"})
	require.NoError(t, err)
	assert.Equal(t, "matched", matched.Outcome)
	require.NotEmpty(t, matched.MatchID)
	assert.Equal(t, 2, e.push.count())

	snap, err = stream.Recv()
	require.NoError(t, err)
	require.Len(t, snap.Matches, 1)
	assert.Equal(t, matched.MatchID, snap.Matches[0].ID)
	assert.Equal(t, "u", snap.Matches[0].OtherUserID)
	assert.Equal(t, "open", snap.Matches[0].State)

	count, err = e.client.CountIncomingSignals(ctx, &arena.CountIncomingSignalsRequest{UserID: "v", ArenaID: "quad"})
	require.NoError(t, err)
	assert.Zero(t, count.Count)

	again, err := e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "already_matched", again.Outcome)

	// chat
	_, err = e.client.SendMessage(ctx, &arena.SendMessageRequest{MatchID: matched.MatchID, SenderID: "u", Text: "hey!"})
	require.NoError(t, err)

	list, err := e.client.ListMatches(ctx, &arena.ListMatchesRequest{UserID: "v"})
	require.NoError(t, err)
	require.Len(t, list.Matches, 1)
	assert.True(t, list.Matches[0].Unread)
	assert.Equal(t, "hey!", list.Matches[0].LastMessage)

	msgs, err := e.client.ListMessages(ctx, &arena.ListMessagesRequest{MatchID: matched.MatchID, UserID: "v"})
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, "u", msgs.Messages[0].SenderID)

	read, err := e.client.MarkRead(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "v"})
	require.NoError(t, err)
	assert.False(t, read.Match.Unread)

	e.clock.Advance(11 * time.Minute)
	_, err = e.client.SendMessage(ctx, &arena.SendMessageRequest{MatchID: matched.MatchID, SenderID: "v", Text: "sorry, late"})
	assertStatus(t, err, codes.FailedPrecondition, "CHAT_EXPIRED")

	ext, err := e.client.ExtendChat(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "expired_pending_extension", ext.Match.State)
	ext, err = e.client.ExtendChat(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, "extended_open", ext.Match.State)
	assert.Zero(t, ext.Match.ExpiresAtUnix)

	_, err = e.client.SendMessage(ctx, &arena.SendMessageRequest{MatchID: matched.MatchID, SenderID: "v", Text: "sorry, late"})
	require.NoError(t, err)

	met, err := e.client.MarkMetIRL(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "u"})
	require.NoError(t, err)
	assert.False(t, met.Awarded)
	met, err = e.client.MarkMetIRL(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "v"})
	require.NoError(t, err)
	assert.True(t, met.Awarded)

	u, err := e.appCtx.Matching.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 60, u.BraveryPoints)
	assert.Equal(t, 2, u.Level)

	_, err = e.client.SendMessage(ctx, &arena.SendMessageRequest{MatchID: matched.MatchID, SenderID: "x", Text: "hi"})
	assertStatus(t, err, codes.PermissionDenied, "NOT_PARTICIPANT")

	um, err := e.client.Unmatch(ctx, &arena.MatchActionRequest{MatchID: matched.MatchID, UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, "unmatched", um.Match.State)
	list, err = e.client.ListMatches(ctx, &arena.ListMatchesRequest{UserID: "v"})
	require.NoError(t, err)
	assert.Empty(t, list.Matches)
}

func TestSendSignal_Errors(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()
	for _, id := range []string{"u"} {
		e.register(t, id, "male")
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		e.register(t, id, "female")
	}

	_, err := e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "a"})
	assertStatus(t, err, codes.FailedPrecondition, "NOT_ACTIVE")

	e.enter(t, "u")
	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "u"})
	assertStatus(t, err, codes.InvalidArgument, "SELF_SIGNAL")

	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "ghost"})
	assertStatus(t, err, codes.NotFound, "SENDER_OR_RECEIVER_MISSING")

	_, err = e.client.Block(ctx, &arena.BlockRequest{UserID: "d", BlockedUserID: "u"})
	require.NoError(t, err)
	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "d"})
	assertStatus(t, err, codes.PermissionDenied, "BLOCKED")

	for _, id := range []string{"a", "b", "c"} {
		_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: id})
		require.NoError(t, err)
	}
	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "d"})
	assertStatus(t, err, codes.PermissionDenied, "BLOCKED")
	_, err = e.client.Block(ctx, &arena.BlockRequest{UserID: "a", BlockedUserID: "a"})
	assertStatus(t, err, codes.InvalidArgument, "SELF_ACTION")

	e.register(t, "e", "female")
	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "e"})
	assertStatus(t, err, codes.ResourceExhausted, "OUT_OF_SIGNALS")

	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u"})
	assertStatus(t, err, codes.InvalidArgument, "")
}

func TestReport(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()
	for _, id := range []string{"target", "r1", "r2", "r3"} {
		e.register(t, id, "female")
	}

	var last *arena.ReportResponse
	for _, r := range []string{"r1", "r2", "r3"} {
		resp, err := e.client.Report(ctx, &arena.ReportRequest{ReporterID: r, TargetID: "target", Reason: "spam"})
		require.NoError(t, err)
		last = resp
	}
	assert.Equal(t, 3, last.ReportCount)
	assert.True(t, last.Flagged)
	assert.NotEmpty(t, last.ReportID)

	_, err := e.client.Report(ctx, &arena.ReportRequest{ReporterID: "r1", TargetID: "ghost"})
	assertStatus(t, err, codes.NotFound, "USER_NOT_FOUND")
}

func TestWatch_Signals(t *testing.T) {
	e := setupServer(t)
	ctx := context.Background()
	e.register(t, "u", "male")
	e.register(t, "v", "female")
	e.enter(t, "u")

	watchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stream, err := e.client.Watch(watchCtx, &arena.WatchRequest{View: arena.ViewSignals, UserID: "v", ArenaID: "quad"})
	require.NoError(t, err)

	snap, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, arena.ViewSignals, snap.View)
	assert.Zero(t, snap.Count)

	_, err = e.client.SendSignal(ctx, &arena.SendSignalRequest{ArenaID: "quad", SenderID: "u", ReceiverID: "v"})
	require.NoError(t, err)

	snap, err = stream.Recv()
	require.NoError(t, err)
	require.Len(t, snap.Signals, 1)
	assert.Equal(t, "u", snap.Signals[0].SenderID)
	assert.Equal(t, uint64(1), snap.Count)
}

func TestWatch_InvalidView(t *testing.T) {
	e := setupServer(t)

	stream, err := e.client.Watch(context.Background(), &arena.WatchRequest{View: "everything", UserID: "u"})
	require.NoError(t, err)
	_, err = stream.Recv()
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")
}
