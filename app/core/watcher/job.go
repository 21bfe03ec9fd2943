package watcher

import (
	"context"
	"fmt"
	"html"
	"strings"

	"steamwatch/app/core/registry"
	"steamwatch/app/core/steam"
	"steamwatch/app/pkg/logger"
	"steamwatch/app/pkg/types"
)

type PresenceClient interface {
	PlayerSummary(ctx context.Context, steamID string) (*steam.Snapshot, error)
}

type Notifier interface {
	Send(ctx context.Context, msg types.Message) error
}

// Job is the periodic poll over all enabled users. Each run fetches
// presence per user, feeds the detector, persists the new state and
// then attempts delivery; a failure for one user never aborts the rest
// of the cycle.
type Job struct {
	store    *registry.Store
	presence PresenceClient
	sink     Notifier
	chatID   string
	threadID int
}

func NewJob(store *registry.Store, presence PresenceClient, sink Notifier, chatID string, threadID int) *Job {
	return &Job{
		store:    store,
		presence: presence,
		sink:     sink,
		chatID:   chatID,
		threadID: threadID,
	}
}

func (j *Job) Run(ctx context.Context) error {
	users, err := j.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled users: %w", err)
	}

	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := j.checkUser(ctx, user); err != nil {
			logger.Error("[Watcher] user=%d check failed: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (j *Job) checkUser(ctx context.Context, user registry.User) error {
	snap, err := j.presence.PlayerSummary(ctx, user.SteamID)
	if err != nil {
		// transient lookup failure: next cycle is the retry
		logger.Error("[Watcher] steam lookup for %s failed: %v", user.SteamID, err)
		snap = nil
	}

	decision := Detect(user.LastGame, snap)
	switch decision.Kind {
	case ActivityEnded:
		if err := j.store.SetLastGame(ctx, user.TelegramID, nil); err != nil {
			return fmt.Errorf("persist activity end: %w", err)
		}
		j.notify(ctx, formatEnded(displayName(user, snap), decision.Activity))
	case ActivityStarted:
		game := decision.Activity
		if err := j.store.SetLastGame(ctx, user.TelegramID, &game); err != nil {
			return fmt.Errorf("persist activity start: %w", err)
		}
		j.notify(ctx, formatStarted(displayName(user, snap), game, user.Comment))
	}
	return nil
}

// notify is best-effort: the state transition is already persisted, so
// a failed send drops that one notification instead of replaying it.
func (j *Job) notify(ctx context.Context, text string) {
	msg := types.Message{
		ChatID:   j.chatID,
		ThreadID: j.threadID,
		Text:     text,
		HTML:     true,
	}
	if err := j.sink.Send(ctx, msg); err != nil {
		logger.Error("[Watcher] notification delivery failed: %v", err)
	}
}

func displayName(user registry.User, snap *steam.Snapshot) string {
	if snap != nil && strings.TrimSpace(snap.PersonaName) != "" {
		return snap.PersonaName
	}
	return user.Username
}

func formatStarted(name, game string, comment *string) string {
	text := fmt.Sprintf("🎮 %s started playing <b>%s</b>", html.EscapeString(name), html.EscapeString(game))
	if comment != nil && strings.TrimSpace(*comment) != "" {
		text += fmt.Sprintf("\n\n💬 <i>%s</i>", html.EscapeString(*comment))
	}
	return text
}

func formatEnded(name, game string) string {
	return fmt.Sprintf("⏹️ %s stopped playing <b>%s</b>", html.EscapeString(name), html.EscapeString(game))
}
