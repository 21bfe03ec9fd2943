package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "steamwatch/app/configs"
	"steamwatch/app/core/commands"
	"steamwatch/app/core/db"
	"steamwatch/app/core/interaction/telegram"
	"steamwatch/app/core/registry"
	"steamwatch/app/core/scheduler"
	"steamwatch/app/core/steam"
	"steamwatch/app/core/watcher"
	"steamwatch/app/pkg/logger"
	"steamwatch/app/pkg/types"
)

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Steamwatch starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	store := registry.NewStore(database)
	presence := steam.NewClient(steam.Config{APIKey: cfg.SteamKey})
	channel := telegram.NewChannel(telegram.Config{BotToken: cfg.BotToken})
	dispatcher := commands.NewDispatcher(store, presence, channel)
	job := watcher.NewJob(store, presence, channel, cfg.GroupChatID, cfg.MessageThreadID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	jobScheduler := scheduler.New()
	err = jobScheduler.Register(scheduler.JobSpec{
		Name:     "check-activity",
		Interval: interval,
		Timeout:  interval * 3 / 4,
		Run:      job.Run,
	})
	if err != nil {
		logger.Error("Failed to register activity job: %v", err)
		os.Exit(1)
	}
	if err := jobScheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobScheduler.Stop(3 * time.Second); err != nil {
			logger.Error("Scheduler shutdown timeout: %v", err)
		}
	}()

	go func() {
		if err := channel.Start(ctx, func(msg types.Message) {
			dispatcher.Handle(ctx, msg)
		}); err != nil {
			logger.Error("Telegram channel crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("Steamwatch is watching, poll interval %s", interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. Shutting down...", sig)
	cancel()
}
