package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"steamwatch/app/core/db"
)

// ErrSteamIDTaken is returned when a registration would bind a Steam
// account that already belongs to a different Telegram user.
var ErrSteamIDTaken = errors.New("registry: steam id already linked to another user")

// User is one tracked Telegram user. LastGame is nil when the user is
// not currently observed in any game; Comment is nil when unset.
type User struct {
	TelegramID int64
	Username   string
	SteamID    string
	LastGame   *string
	Enabled    bool
	Comment    *string
	CreatedAt  time.Time
}

// Awaiting is the per-user conversation state consulted before command
// parsing: the next free-text message from the user completes the flow.
type Awaiting string

const (
	AwaitingNone    Awaiting = "none"
	AwaitingSteamID Awaiting = "steam_id"
	AwaitingComment Awaiting = "comment"
)

type Store struct {
	conn *sql.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn()}
}

// Save inserts or updates a user keyed by Telegram id. Re-registering
// the same Steam account under the same user is an idempotent update;
// claiming one owned by a different user fails with ErrSteamIDTaken
// and leaves both records unmodified.
func (s *Store) Save(ctx context.Context, user User) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO users (tg_id, tg_username, steam_id, last_game, enabled, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(tg_id) DO UPDATE SET
	tg_username = excluded.tg_username,
	steam_id = excluded.steam_id,
	last_game = excluded.last_game,
	enabled = excluded.enabled`,
		user.TelegramID, user.Username, user.SteamID, toNullString(user.LastGame),
		boolToInt(user.Enabled), time.Now().Unix())
	if err != nil && strings.Contains(err.Error(), "users.steam_id") {
		return ErrSteamIDTaken
	}
	return err
}

// Get returns the user or nil when not registered.
func (s *Store) Get(ctx context.Context, tgID int64) (*User, error) {
	row := s.conn.QueryRowContext(ctx, `
SELECT tg_id, tg_username, steam_id, last_game, enabled, comment, created_at
FROM users WHERE tg_id = ?`, tgID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListEnabled returns every user currently included in polling, as a
// point-in-time read; command writes during a poll cycle surface on the
// next cycle.
func (s *Store) ListEnabled(ctx context.Context) ([]User, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT tg_id, tg_username, steam_id, last_game, enabled, comment, created_at
FROM users WHERE enabled = 1 ORDER BY created_at, tg_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) SetEnabled(ctx context.Context, tgID int64, enabled bool) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET enabled = ? WHERE tg_id = ?`, boolToInt(enabled), tgID)
	return err
}

func (s *Store) SetLastGame(ctx context.Context, tgID int64, game *string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET last_game = ? WHERE tg_id = ?`, toNullString(game), tgID)
	return err
}

func (s *Store) SetComment(ctx context.Context, tgID int64, comment string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET comment = ? WHERE tg_id = ?`, comment, tgID)
	return err
}

// Awaiting reports the pending-input state for a user.
func (s *Store) Awaiting(ctx context.Context, tgID int64) (Awaiting, error) {
	var state string
	err := s.conn.QueryRowContext(ctx, `SELECT awaiting FROM user_state WHERE tg_id = ?`, tgID).Scan(&state)
	if err == sql.ErrNoRows {
		return AwaitingNone, nil
	}
	if err != nil {
		return AwaitingNone, err
	}
	switch Awaiting(state) {
	case AwaitingSteamID, AwaitingComment:
		return Awaiting(state), nil
	default:
		return AwaitingNone, nil
	}
}

func (s *Store) SetAwaiting(ctx context.Context, tgID int64, state Awaiting) error {
	if state == AwaitingNone {
		return s.ClearAwaiting(ctx, tgID)
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO user_state (tg_id, awaiting, updated_at) VALUES (?, ?, ?)
ON CONFLICT(tg_id) DO UPDATE SET awaiting = excluded.awaiting, updated_at = excluded.updated_at`,
		tgID, string(state), time.Now().Unix())
	return err
}

func (s *Store) ClearAwaiting(ctx context.Context, tgID int64) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM user_state WHERE tg_id = ?`, tgID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		lastGame  sql.NullString
		comment   sql.NullString
		enabled   int
		createdAt int64
	)
	err := row.Scan(&user.TelegramID, &user.Username, &user.SteamID, &lastGame, &enabled, &comment, &createdAt)
	if err != nil {
		return User{}, err
	}
	user.LastGame = fromNullString(lastGame)
	user.Comment = fromNullString(comment)
	user.Enabled = enabled != 0
	user.CreatedAt = time.Unix(createdAt, 0)
	return user, nil
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	text := value.String
	return &text
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
