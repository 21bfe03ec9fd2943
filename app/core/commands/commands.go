package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"steamwatch/app/core/registry"
	"steamwatch/app/core/steam"
	"steamwatch/app/pkg/logger"
	"steamwatch/app/pkg/types"
)

const statusMessageLimit = 4000

var steamIDPattern = regexp.MustCompile(`^\d{17,}$`)

type Presence interface {
	PlayerSummary(ctx context.Context, steamID string) (*steam.Snapshot, error)
}

type Replier interface {
	Send(ctx context.Context, msg types.Message) error
}

type reply struct {
	text string
	html bool
}

type handler func(ctx context.Context, msg types.Message, args []string) (reply, error)

// Dispatcher interprets inbound chat text. Pending two-step input
// (steam id or comment) is consumed before any command parsing; slash
// input that matches no known command gets a fuzzy suggestion.
type Dispatcher struct {
	store    *registry.Store
	presence Presence
	replier  Replier
	handlers map[string]handler
	names    []string
}

func NewDispatcher(store *registry.Store, presence Presence, replier Replier) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		presence: presence,
		replier:  replier,
		handlers: map[string]handler{},
	}
	d.register("start", d.helpCommand)
	d.register("help", d.helpCommand)
	d.register("allow_steam", d.allowSteamCommand)
	d.register("stop_steam", d.stopSteamCommand)
	d.register("comment", d.commentCommand)
	d.register("status", d.statusCommand)
	d.register("chatid", d.chatIDCommand)
	return d
}

func (d *Dispatcher) register(name string, h handler) {
	d.handlers[name] = h
	d.names = append(d.names, name)
	sort.Strings(d.names)
}

// Handle processes one inbound message and sends the reply, if any,
// back to the chat it came from.
func (d *Dispatcher) Handle(ctx context.Context, msg types.Message) {
	out := d.dispatch(ctx, msg)
	if out.text == "" {
		return
	}
	err := d.replier.Send(ctx, types.Message{
		ChatID:   msg.ChatID,
		ThreadID: msg.ThreadID,
		Text:     out.text,
		HTML:     out.html,
	})
	if err != nil {
		logger.Error("[Commands] reply delivery failed: %v", err)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg types.Message) reply {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return reply{}
	}

	// pending two-step input wins over command parsing and is cleared
	// once consumed, successfully or not
	state, err := d.store.Awaiting(ctx, msg.UserID)
	if err != nil {
		logger.Error("[Commands] awaiting lookup for %d failed: %v", msg.UserID, err)
		state = registry.AwaitingNone
	}
	switch state {
	case registry.AwaitingSteamID:
		if err := d.store.ClearAwaiting(ctx, msg.UserID); err != nil {
			logger.Error("[Commands] clear awaiting for %d failed: %v", msg.UserID, err)
		}
		return d.registerUser(ctx, msg, text)
	case registry.AwaitingComment:
		if err := d.store.ClearAwaiting(ctx, msg.UserID); err != nil {
			logger.Error("[Commands] clear awaiting for %d failed: %v", msg.UserID, err)
		}
		return d.saveComment(ctx, msg, text)
	}

	if !strings.HasPrefix(text, "/") {
		return reply{}
	}
	parts := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(parts) == 0 {
		return reply{}
	}
	name := strings.ToLower(parts[0])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	h := d.handlers[name]
	if h == nil {
		return d.suggest(name)
	}
	out, err := h(ctx, msg, parts[1:])
	if err != nil {
		logger.Error("[Commands] /%s from %d failed: %v", name, msg.UserID, err)
		return reply{text: "⚠️ Something went wrong, please try again."}
	}
	return out
}

func (d *Dispatcher) allowSteamCommand(ctx context.Context, msg types.Message, args []string) (reply, error) {
	if len(args) == 0 {
		if err := d.store.SetAwaiting(ctx, msg.UserID, registry.AwaitingSteamID); err != nil {
			return reply{}, err
		}
		return reply{text: "🆔 Please send your SteamID64.\n\nIt is a long number starting with 7656119...\nYou can look it up at https://steamid.io"}, nil
	}
	return d.registerUser(ctx, msg, args[0]), nil
}

func (d *Dispatcher) registerUser(ctx context.Context, msg types.Message, steamID string) reply {
	steamID = strings.TrimSpace(steamID)
	if !steamIDPattern.MatchString(steamID) {
		return reply{text: "❌ That does not look like a SteamID64: it must be a number of at least 17 digits. You can look yours up at https://steamid.io"}
	}

	user := registry.User{
		TelegramID: msg.UserID,
		Username:   msg.DisplayName(),
		SteamID:    steamID,
		Enabled:    true,
	}
	if err := d.store.Save(ctx, user); err != nil {
		if errors.Is(err, registry.ErrSteamIDTaken) {
			return reply{text: "❌ This SteamID is already linked to another account."}
		}
		logger.Error("[Commands] save user %d failed: %v", msg.UserID, err)
		return reply{text: "⚠️ Could not save that, please try again."}
	}
	return reply{text: "👍 You are now on the Steam watch list."}
}

func (d *Dispatcher) stopSteamCommand(ctx context.Context, msg types.Message, _ []string) (reply, error) {
	user, err := d.store.Get(ctx, msg.UserID)
	if err != nil {
		return reply{}, err
	}
	if user == nil {
		return reply{text: "You were not on the watch list."}, nil
	}
	if err := d.store.SetEnabled(ctx, msg.UserID, false); err != nil {
		return reply{}, err
	}
	return reply{text: "🛑 Tracking disabled."}, nil
}

func (d *Dispatcher) commentCommand(ctx context.Context, msg types.Message, args []string) (reply, error) {
	user, err := d.store.Get(ctx, msg.UserID)
	if err != nil {
		return reply{}, err
	}
	if user == nil {
		return reply{text: "Register first with /allow_steam."}, nil
	}

	comment := strings.TrimSpace(strings.Join(args, " "))
	if comment == "" {
		if err := d.store.SetAwaiting(ctx, msg.UserID, registry.AwaitingComment); err != nil {
			return reply{}, err
		}
		return reply{text: "💬 Send your comment (emoji welcome):"}, nil
	}
	if err := d.store.SetComment(ctx, msg.UserID, comment); err != nil {
		return reply{}, err
	}
	return reply{text: fmt.Sprintf("✅ Comment saved:\n\n«%s»", comment)}, nil
}

func (d *Dispatcher) saveComment(ctx context.Context, msg types.Message, comment string) reply {
	user, err := d.store.Get(ctx, msg.UserID)
	if err != nil {
		logger.Error("[Commands] get user %d failed: %v", msg.UserID, err)
		return reply{text: "⚠️ Could not save that, please try again."}
	}
	if user == nil {
		return reply{text: "Register first with /allow_steam."}
	}
	if err := d.store.SetComment(ctx, msg.UserID, strings.TrimSpace(comment)); err != nil {
		logger.Error("[Commands] set comment for %d failed: %v", msg.UserID, err)
		return reply{text: "⚠️ Could not save that, please try again."}
	}
	return reply{text: fmt.Sprintf("✅ Comment saved:\n\n«%s»", strings.TrimSpace(comment))}
}

func (d *Dispatcher) statusCommand(ctx context.Context, _ types.Message, _ []string) (reply, error) {
	users, err := d.store.ListEnabled(ctx)
	if err != nil {
		return reply{}, err
	}
	if len(users) == 0 {
		return reply{text: "📭 Nobody is being tracked yet.\n\nUse /allow_steam to start."}, nil
	}

	var b strings.Builder
	b.WriteString("📊 <b>Tracked users:</b>\n\n")
	for _, user := range users {
		snap, err := d.presence.PlayerSummary(ctx, user.SteamID)
		if err != nil || snap == nil {
			fmt.Fprintf(&b, "⚠️ <b>%s</b>: no data available\n", html.EscapeString(user.Username))
			continue
		}
		if snap.Game != nil {
			fmt.Fprintf(&b, "🎮 <b>%s</b> is playing <i>%s</i>\n", html.EscapeString(snap.PersonaName), html.EscapeString(*snap.Game))
		} else {
			fmt.Fprintf(&b, "✅ <b>%s</b>: online, not in a game\n", html.EscapeString(snap.PersonaName))
		}
	}

	text := b.String()
	if len(text) > statusMessageLimit {
		text = text[:statusMessageLimit] + "\n\n… (list truncated)"
	}
	return reply{text: text, html: true}, nil
}

func (d *Dispatcher) chatIDCommand(_ context.Context, msg types.Message, _ []string) (reply, error) {
	text := fmt.Sprintf("Chat ID: %s", msg.ChatID)
	if msg.ThreadID > 0 {
		text += fmt.Sprintf(", thread %d", msg.ThreadID)
	}
	return reply{text: text}, nil
}

func (d *Dispatcher) helpCommand(_ context.Context, _ types.Message, _ []string) (reply, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range d.names {
		b.WriteString("  /")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return reply{text: strings.TrimSpace(b.String())}, nil
}

func (d *Dispatcher) suggest(name string) reply {
	if best := nearestCommand(name, d.names); best != "" {
		return reply{text: fmt.Sprintf("Unknown command. Did you mean /%s?", best)}
	}
	return reply{text: "Unknown command. Try /help."}
}
