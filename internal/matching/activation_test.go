package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/matching"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	u, err := f.svc.Register(ctx, matching.Profile{ID: "u", Name: " Uma ", Gender: "Female"})
	require.NoError(t, err)
	assert.Equal(t, db.SexualityStraight, u.Sexuality)
	assert.Equal(t, "female", u.Gender)
	assert.Equal(t, "Uma", u.Name)
	assert.Equal(t, 1, u.Level)
	assert.Zero(t, u.BraveryPoints)
	assert.Zero(t, u.SignalsRemaining)
	assert.False(t, u.IsActiveInZone)
	assert.Nil(t, u.ActiveArenaID)

	_, err = f.svc.Register(ctx, matching.Profile{ID: "u"})
	assert.ErrorIs(t, err, matching.ErrUserExists)

	_, err = f.svc.Register(ctx, matching.Profile{ID: "w", Sexuality: "pan"})
	assert.ErrorIs(t, err, matching.ErrInvalidUser)

	_, err = f.svc.Register(ctx, matching.Profile{})
	assert.ErrorIs(t, err, matching.ErrInvalidUser)

	assert.ErrorIs(t, f.svc.UpdatePushToken(ctx, "ghost", "t"), matching.ErrUserNotFound)
	require.NoError(t, f.svc.UpdatePushToken(ctx, "u", "tok"))
	got, err := f.svc.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.PushToken)
}

func TestActivate_CreditsOnceAndResetsBudget(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")

	act, err := f.svc.Activate(ctx, "u", "quad")
	require.NoError(t, err)
	assert.Equal(t, matching.SignalBudget, act.SignalsRemaining)
	assert.Equal(t, 10, act.BraveryPoints)
	assert.Equal(t, 1, act.Level)
	assert.False(t, act.Reactivated)

	u := f.user(t, "u")
	assert.True(t, u.IsActiveInZone)
	require.NotNil(t, u.ActiveArenaID)
	assert.Equal(t, "quad", *u.ActiveArenaID)
	assert.Equal(t, 3, u.SignalsRemaining)

	var au db.ActiveUser
	require.NoError(t, f.st.DB().Take(&au, "id = ?", db.ActiveUserID("quad", "u")).Error)
	assert.Equal(t, 3, au.SignalsRemaining)

	// spend one, then reactivate into the same arena
	f.register(t, "v", "female", "")
	_, err = f.svc.TrySend(ctx, "quad", "u", "v")
	require.NoError(t, err)
	assert.Equal(t, 2, f.user(t, "u").SignalsRemaining)

	act, err = f.svc.Activate(ctx, "u", "quad")
	require.NoError(t, err)
	assert.True(t, act.Reactivated)
	assert.Equal(t, 3, act.SignalsRemaining)
	assert.Equal(t, 10, f.user(t, "u").BraveryPoints)
}

func TestActivate_AlreadyActiveElsewhere(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")
	f.activate(t, "quad", "u")

	_, err := f.svc.Activate(ctx, "u", "hall")
	assert.ErrorIs(t, err, matching.ErrAlreadyActiveElsewhere)

	require.NoError(t, f.svc.Deactivate(ctx, "u", "quad"))
	act, err := f.svc.Activate(ctx, "u", "hall")
	require.NoError(t, err)
	assert.Equal(t, 20, act.BraveryPoints)
}

func TestActivate_StaleProfilePointerDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")

	hall := "hall"
	require.NoError(t, f.st.DB().Model(&db.User{}).Where("id = ?", "u").
		Updates(map[string]any{"active_arena_id": hall, "is_active_in_zone": true}).Error)

	_, err := f.svc.Activate(ctx, "u", "quad")
	require.NoError(t, err)
	assert.Equal(t, "quad", *f.user(t, "u").ActiveArenaID)
}

func TestActivate_Missing(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")

	_, err := f.svc.Activate(ctx, "ghost", "quad")
	assert.ErrorIs(t, err, matching.ErrUserNotFound)

	_, err = f.svc.Activate(ctx, "u", "nowhere")
	assert.ErrorIs(t, err, arenas.ErrNotFound)
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")

	// not active anywhere
	require.NoError(t, f.svc.Deactivate(ctx, "u", "quad"))

	f.activate(t, "quad", "u")
	// deactivating another arena leaves the quad activation alone
	require.NoError(t, f.svc.Deactivate(ctx, "u", "hall"))
	assert.True(t, f.user(t, "u").IsActiveInZone)

	require.NoError(t, f.svc.Deactivate(ctx, "u", "quad"))
	u := f.user(t, "u")
	assert.False(t, u.IsActiveInZone)
	assert.Nil(t, u.ActiveArenaID)
	assert.Zero(t, u.SignalsRemaining)
	assert.Zero(t, f.count(t, &db.ActiveUser{}, "user_id = ?", "u"))
}

func TestEnter(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	f.register(t, "u", "male", "")

	_, err := f.svc.Enter(ctx, "u", "quad", geo.Reported{})
	assert.ErrorIs(t, err, geo.ErrPermissionDenied)

	far := &geo.Point{Latitude: 30.1762433, Longitude: 77.3068033}
	_, err = f.svc.Enter(ctx, "u", "quad", geo.Reported{Point: far})
	require.ErrorIs(t, err, matching.ErrOutsideArena)
	var outside *matching.OutsideArenaError
	require.ErrorAs(t, err, &outside)
	assert.InDelta(t, 222.4, outside.Distance, 1)

	_, err = f.svc.Enter(ctx, "u", "nowhere", geo.Reported{Point: far})
	assert.ErrorIs(t, err, arenas.ErrNotFound)

	near := &geo.Point{Latitude: 30.1745, Longitude: 77.3068}
	act, err := f.svc.Enter(ctx, "u", "quad", geo.Reported{Point: near})
	require.NoError(t, err)
	assert.Equal(t, "quad", act.ArenaID)

	require.NoError(t, f.st.DB().Model(&db.Arena{}).Where("id = ?", "hall").Update("is_active", false).Error)
	_, err = f.svc.Enter(ctx, "u", "hall", geo.Reported{Point: near})
	assert.ErrorIs(t, err, matching.ErrArenaClosed)

	f.clock.Advance(3 * time.Hour)
	_, err = f.svc.Enter(ctx, "u", "quad", geo.Reported{Point: near})
	assert.ErrorIs(t, err, matching.ErrArenaClosed)
}
