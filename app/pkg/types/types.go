package types

import "context"

// Message is a single inbound or outbound chat message.
type Message struct {
	ID        string
	RequestID string
	Text      string
	ChatID    string
	ThreadID  int
	UserID    int64
	Username  string
	FirstName string
	HTML      bool
}

// DisplayName returns the best-effort human label for the sender.
func (m Message) DisplayName() string {
	if m.Username != "" {
		return m.Username
	}
	return m.FirstName
}

// Channel is a chat transport: it feeds inbound messages to a handler
// and delivers outbound ones.
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, msg Message) error
	ID() string
}
