package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything read from the environment at startup. It is
// loaded once and never mutated afterwards.
type Config struct {
	BotToken        string
	GroupChatID     string
	SteamKey        string
	MessageThreadID int
	DataDir         string
	PollIntervalSec int
}

// Load reads the process configuration from environment variables.
// BOT_TOKEN, GROUP_CHAT_ID and STEAM_KEY are required; a missing value
// is reported for all of them at once.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for _, key := range []string{"BOT_TOKEN", "GROUP_CHAT_ID", "STEAM_KEY", "MESSAGE_THREAD_ID", "DATA_DIR", "POLL_INTERVAL_SEC"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}
	v.SetDefault("DATA_DIR", "output/db")
	v.SetDefault("POLL_INTERVAL_SEC", 60)

	cfg := Config{
		BotToken:        strings.TrimSpace(v.GetString("BOT_TOKEN")),
		GroupChatID:     strings.TrimSpace(v.GetString("GROUP_CHAT_ID")),
		SteamKey:        strings.TrimSpace(v.GetString("STEAM_KEY")),
		MessageThreadID: v.GetInt("MESSAGE_THREAD_ID"),
		DataDir:         v.GetString("DATA_DIR"),
		PollIntervalSec: v.GetInt("POLL_INTERVAL_SEC"),
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if cfg.GroupChatID == "" {
		missing = append(missing, "GROUP_CHAT_ID")
	}
	if cfg.SteamKey == "" {
		missing = append(missing, "STEAM_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "output/db"
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 60
	}
	return cfg, nil
}
