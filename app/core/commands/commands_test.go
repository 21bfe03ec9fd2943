package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steamwatch/app/core/db"
	"steamwatch/app/core/registry"
	"steamwatch/app/core/steam"
	"steamwatch/app/pkg/types"
)

const (
	validSteamID = "76561197960287930"
	otherSteamID = "76561197960287931"
)

type stubPresence struct {
	snaps map[string]*steam.Snapshot
}

func (s *stubPresence) PlayerSummary(_ context.Context, steamID string) (*steam.Snapshot, error) {
	return s.snaps[steamID], nil
}

type recordingReplier struct {
	sent []types.Message
}

func (r *recordingReplier) Send(_ context.Context, msg types.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingReplier) last(t *testing.T) types.Message {
	t.Helper()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *registry.Store, *recordingReplier, *stubPresence) {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store := registry.NewStore(database)
	presence := &stubPresence{snaps: map[string]*steam.Snapshot{}}
	replier := &recordingReplier{}
	return NewDispatcher(store, presence, replier), store, replier, presence
}

func message(userID int64, text string) types.Message {
	return types.Message{
		Text:     text,
		ChatID:   "-1001234",
		ThreadID: 3,
		UserID:   userID,
		Username: "tester",
	}
}

func TestRegisterRejectsMalformedSteamID(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam 12345"))

	assert.Contains(t, replier.last(t).Text, "SteamID64")

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, user, "a rejected registration must not write to the registry")
}

func TestRegisterWithValidSteamID(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))

	assert.Contains(t, replier.last(t).Text, "watch list")
	assert.Equal(t, "-1001234", replier.last(t).ChatID)
	assert.Equal(t, 3, replier.last(t).ThreadID)

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, validSteamID, user.SteamID)
	assert.True(t, user.Enabled)
}

func TestRegisterConflictIsReported(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(2, "/allow_steam "+validSteamID))

	assert.Contains(t, replier.last(t).Text, "already linked")

	second, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestInteractiveRegistration(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam"))
	assert.Contains(t, replier.last(t).Text, "SteamID64")

	state, err := store.Awaiting(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registry.AwaitingSteamID, state)

	d.Handle(ctx, message(1, validSteamID))
	assert.Contains(t, replier.last(t).Text, "watch list")

	state, err = store.Awaiting(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registry.AwaitingNone, state, "pending input must be cleared once consumed")

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, validSteamID, user.SteamID)
}

func TestInteractiveRegistrationClearsStateOnBadInput(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam"))
	d.Handle(ctx, message(1, "not a steam id"))

	assert.Contains(t, replier.last(t).Text, "SteamID64")

	state, err := store.Awaiting(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registry.AwaitingNone, state)

	// with the flow cleared, plain text is ignored again
	sentBefore := len(replier.sent)
	d.Handle(ctx, message(1, "just chatting"))
	assert.Len(t, replier.sent, sentBefore)
}

func TestStopSteam(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/stop_steam"))
	assert.Contains(t, replier.last(t).Text, "not on the watch list")

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(1, "/stop_steam"))
	assert.Contains(t, replier.last(t).Text, "Tracking disabled")

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.Enabled)
}

func TestCommentRequiresRegistration(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/comment hello"))

	assert.Contains(t, replier.last(t).Text, "Register first")
}

func TestCommentInline(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(1, "/comment come join the lobby"))

	assert.Contains(t, replier.last(t).Text, "come join the lobby")

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user.Comment)
	assert.Equal(t, "come join the lobby", *user.Comment)
}

func TestCommentTwoStep(t *testing.T) {
	d, store, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(1, "/comment"))
	assert.Contains(t, replier.last(t).Text, "Send your comment")

	d.Handle(ctx, message(1, "gg wp 🎉"))
	assert.Contains(t, replier.last(t).Text, "gg wp 🎉")

	user, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user.Comment)
	assert.Equal(t, "gg wp 🎉", *user.Comment)

	state, err := store.Awaiting(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registry.AwaitingNone, state)
}

func TestStatusEmpty(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/status"))

	assert.Contains(t, replier.last(t).Text, "Nobody is being tracked")
}

func TestStatusListsLivePresence(t *testing.T) {
	d, _, replier, presence := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(2, "/allow_steam "+otherSteamID))

	game := "Game A"
	presence.snaps[validSteamID] = &steam.Snapshot{PersonaName: "alice", Game: &game}
	presence.snaps[otherSteamID] = &steam.Snapshot{PersonaName: "bob"}

	d.Handle(ctx, message(1, "/status"))

	out := replier.last(t)
	assert.True(t, out.HTML)
	assert.Contains(t, out.Text, "alice")
	assert.Contains(t, out.Text, "Game A")
	assert.Contains(t, out.Text, "bob")
	assert.Contains(t, out.Text, "online, not in a game")
}

func TestStatusReportsMissingData(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, message(1, "/allow_steam "+validSteamID))
	d.Handle(ctx, message(1, "/status"))

	assert.Contains(t, replier.last(t).Text, "no data available")
}

func TestChatIDEcho(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/chatid"))

	out := replier.last(t)
	assert.Contains(t, out.Text, "-1001234")
	assert.Contains(t, out.Text, "thread 3")
}

func TestUnknownCommandGetsSuggestion(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/allow_stem"))

	assert.Contains(t, replier.last(t).Text, "Did you mean /allow_steam?")
}

func TestUnknownCommandFarFromAnything(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/xyzzyqwertyuiop"))

	assert.Contains(t, replier.last(t).Text, "Try /help")
}

func TestPlainTextIsIgnored(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "good morning"))

	assert.Empty(t, replier.sent)
}

func TestCommandWithBotMention(t *testing.T) {
	d, _, replier, _ := newTestDispatcher(t)

	d.Handle(context.Background(), message(1, "/help@steamwatch_bot"))

	assert.Contains(t, replier.last(t).Text, "/allow_steam")
}

func TestNearestCommand(t *testing.T) {
	known := []string{"allow_steam", "stop_steam", "status", "help"}

	assert.Equal(t, "status", nearestCommand("staus", known))
	assert.Equal(t, "allow_steam", nearestCommand("alow_steam", known))
	assert.Equal(t, "", nearestCommand("completely_different", known))
}
