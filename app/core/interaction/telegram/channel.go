package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"steamwatch/app/pkg/logger"
	"steamwatch/app/pkg/types"
)

const defaultAPIRoot = "https://api.telegram.org"

type Config struct {
	BotToken       string
	PollInterval   time.Duration
	TimeoutSeconds int
	APIRoot        string
}

// Channel is a long-polling Telegram Bot API transport. Inbound text
// updates are handed to the handler registered via Start; Send posts a
// message to any chat, optionally into a forum thread.
type Channel struct {
	cfg  Config
	id   string
	http *http.Client

	offset int64

	mu      sync.RWMutex
	handler func(types.Message)
}

func NewChannel(cfg Config) *Channel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 20
	}
	if strings.TrimSpace(cfg.APIRoot) == "" {
		cfg.APIRoot = defaultAPIRoot
	}
	return &Channel{
		cfg: cfg,
		id:  "telegram",
		// the long poll holds the connection open for TimeoutSeconds
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds+10) * time.Second},
	}
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) Start(ctx context.Context, handler func(types.Message)) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	if strings.TrimSpace(c.cfg.BotToken) == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("[Telegram] poll error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Channel) Send(ctx context.Context, msg types.Message) error {
	chatID := strings.TrimSpace(msg.ChatID)
	if chatID == "" {
		return fmt.Errorf("telegram chat id is required")
	}

	payload, _ := sjson.Set("", "chat_id", chatID)
	payload, _ = sjson.Set(payload, "text", msg.Text)
	if msg.HTML {
		payload, _ = sjson.Set(payload, "parse_mode", "HTML")
	}
	if msg.ThreadID > 0 {
		payload, _ = sjson.Set(payload, "message_thread_id", msg.ThreadID)
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

func (c *Channel) pollOnce(ctx context.Context) error {
	payload, _ := sjson.Set("", "timeout", c.cfg.TimeoutSeconds)
	if offset := atomic.LoadInt64(&c.offset); offset > 0 {
		payload, _ = sjson.Set(payload, "offset", offset)
	}
	result, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return nil
	}

	for _, upd := range result.Array() {
		if id := upd.Get("update_id").Int(); id >= atomic.LoadInt64(&c.offset) {
			atomic.StoreInt64(&c.offset, id+1)
		}
		message := upd.Get("message")
		if !message.Exists() {
			continue
		}
		text := strings.TrimSpace(message.Get("text").String())
		if text == "" {
			continue
		}
		handler(c.toMessage(message, text))
	}
	return nil
}

func (c *Channel) toMessage(message gjson.Result, text string) types.Message {
	return types.Message{
		ID:        message.Get("message_id").String(),
		RequestID: uuid.NewString(),
		Text:      text,
		ChatID:    message.Get("chat.id").String(),
		ThreadID:  int(message.Get("message_thread_id").Int()),
		UserID:    message.Get("from.id").Int(),
		Username:  message.Get("from.username").String(),
		FirstName: message.Get("from.first_name").String(),
	}
}

func (c *Channel) call(ctx context.Context, method string, payload string) (gjson.Result, error) {
	url := strings.TrimRight(c.cfg.APIRoot, "/") + "/bot" + c.cfg.BotToken + "/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("telegram api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return gjson.Result{}, fmt.Errorf("telegram api error: %s", gjson.GetBytes(body, "description").String())
	}
	return gjson.GetBytes(body, "result"), nil
}
