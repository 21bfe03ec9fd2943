package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steamwatch/app/core/db"
)

const (
	aliceID      = int64(100)
	bobID        = int64(200)
	aliceSteamID = "76561197960287930"
	bobSteamID   = "76561197960287931"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func TestSaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, Username: "alice", SteamID: aliceSteamID, Enabled: true}))

	user, err := store.Get(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, aliceSteamID, user.SteamID)
	assert.True(t, user.Enabled)
	assert.Nil(t, user.LastGame)
	assert.Nil(t, user.Comment)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestGetUnknownUserReturnsNil(t *testing.T) {
	store := newStore(t)

	user, err := store.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSteamIDUniqueness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, Username: "alice", SteamID: aliceSteamID, Enabled: true}))

	err := store.Save(ctx, User{TelegramID: bobID, Username: "bob", SteamID: aliceSteamID, Enabled: true})
	require.ErrorIs(t, err, ErrSteamIDTaken)

	// both records unmodified: alice keeps the id, bob was never written
	alice, err := store.Get(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, aliceSteamID, alice.SteamID)

	bob, err := store.Get(ctx, bobID)
	require.NoError(t, err)
	assert.Nil(t, bob)
}

func TestReRegistrationIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, Username: "alice", SteamID: aliceSteamID, Enabled: true}))
	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, Username: "alice2", SteamID: aliceSteamID, Enabled: true}))

	user, err := store.Get(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice2", user.Username)
	assert.Equal(t, aliceSteamID, user.SteamID)
}

func TestReRegistrationCannotClaimForeignSteamID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, SteamID: aliceSteamID, Enabled: true}))
	require.NoError(t, store.Save(ctx, User{TelegramID: bobID, SteamID: bobSteamID, Enabled: true}))

	err := store.Save(ctx, User{TelegramID: bobID, SteamID: aliceSteamID, Enabled: true})
	require.ErrorIs(t, err, ErrSteamIDTaken)

	bob, err := store.Get(ctx, bobID)
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.Equal(t, bobSteamID, bob.SteamID)
}

func TestFieldUpdates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, SteamID: aliceSteamID, Enabled: true}))

	game := "Game A"
	require.NoError(t, store.SetLastGame(ctx, aliceID, &game))
	require.NoError(t, store.SetComment(ctx, aliceID, "a note"))

	user, err := store.Get(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, user.LastGame)
	assert.Equal(t, "Game A", *user.LastGame)
	require.NotNil(t, user.Comment)
	assert.Equal(t, "a note", *user.Comment)

	require.NoError(t, store.SetLastGame(ctx, aliceID, nil))
	user, err = store.Get(ctx, aliceID)
	require.NoError(t, err)
	assert.Nil(t, user.LastGame)
}

func TestListEnabledExcludesDisabled(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, User{TelegramID: aliceID, SteamID: aliceSteamID, Enabled: true}))
	require.NoError(t, store.Save(ctx, User{TelegramID: bobID, SteamID: bobSteamID, Enabled: true}))

	require.NoError(t, store.SetEnabled(ctx, bobID, false))

	users, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, aliceID, users[0].TelegramID)

	// soft-disable keeps the record
	bob, err := store.Get(ctx, bobID)
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.False(t, bob.Enabled)
}

func TestAwaitingLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	state, err := store.Awaiting(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, AwaitingNone, state)

	require.NoError(t, store.SetAwaiting(ctx, aliceID, AwaitingSteamID))
	state, err = store.Awaiting(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, AwaitingSteamID, state)

	require.NoError(t, store.SetAwaiting(ctx, aliceID, AwaitingComment))
	state, err = store.Awaiting(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, AwaitingComment, state)

	require.NoError(t, store.ClearAwaiting(ctx, aliceID))
	state, err = store.Awaiting(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, AwaitingNone, state)
}
