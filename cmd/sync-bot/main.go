package main

import (
	"context"
	"os/signal"
	"syscall"

	"masquerade/internal/broadcast"
	"masquerade/internal/config"
	"masquerade/internal/logging"
	"masquerade/internal/syncagent"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var queue syncagent.Queue
	if cfg.QueuePath != "" {
		q, err := syncagent.OpenSQLiteQueue(cfg.QueuePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.QueuePath).Msg("open offline queue failed")
		}
		queue = q
	} else {
		queue = syncagent.NewMemoryQueue()
	}

	client := syncagent.NewClient(cfg.ServerURL, cfg.RoomID)
	if _, err := client.Join(ctx, cfg.PlayerName, cfg.AsAdmin); err != nil {
		log.Fatal().Err(err).Str("room_id", cfg.RoomID).Msg("join failed")
	}
	log.Info().Str("player_id", client.PlayerID).Str("room_id", cfg.RoomID).Msg("joined room")

	agent := syncagent.NewAgent(client, queue, syncagent.Config{
		BasePollInterval:     cfg.PollInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	agent.OnStatus = func(s syncagent.Status) {
		log.Info().Str("status", string(s)).Msg("sync status changed")
	}
	agent.OnEvent = func(ev broadcast.Event) {
		log.Debug().Str("type", string(ev.Type)).Str("event_id", ev.EventID).Msg("event applied")
	}

	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("agent stopped")
	}
	if err := agent.Close(); err != nil {
		log.Error().Err(err).Msg("close failed")
	}
	log.Info().Msg("sync bot stopped")
}
