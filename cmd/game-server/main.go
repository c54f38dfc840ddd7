package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"masquerade/internal/broadcast"
	"masquerade/internal/config"
	"masquerade/internal/game"
	"masquerade/internal/logging"
	"masquerade/internal/store"
	httptransport "masquerade/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	app, err := config.LoadGameServer()
	if err != nil {
		panic(err)
	}
	logging.Init(app.Log)
	cfg := app.HTTP

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(store.Config{
		BackupInterval:  cfg.BackupInterval,
		VerifyInterval:  cfg.VerifyInterval,
		CleanupInterval: cfg.CleanupInterval,
		SessionTTL:      cfg.SessionTTL,
		RoomTTL:         cfg.RoomTTL,
	})
	go st.Run(ctx)

	bc := broadcast.New(broadcast.Config{
		HeartbeatInterval:  cfg.HeartbeatInterval,
		StreamMaxLifetime:  cfg.StreamMaxLifetime,
		HeartbeatFailLimit: cfg.HeartbeatFailLimit,
		BufferSize:         cfg.ConnectionBufferSize,
	})
	go bc.Run(ctx)

	reg := game.NewRegistry(game.Settings{
		MinPlayers:         cfg.MinPlayers,
		MaxPlayers:         cfg.MaxPlayers,
		Rounds:             cfg.Rounds,
		RoundDuration:      cfg.RoundDuration,
		VotingDuration:     cfg.VotingDuration,
		RoleRevealDuration: cfg.RoleRevealDuration,
		ResultsDuration:    cfg.ResultsDuration,
		MaxContentLen:      cfg.MaxContentLen,
		AutoStartThreshold: cfg.AutoStartThreshold,
		AutoStartGrace:     cfg.AutoStartGrace,
	}, bc, st)

	r := httptransport.NewRouter(reg, st, bc)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		log.Fatal().Err(err).Msg("server stopped")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
		log.Info().Msg("server stopped")
	}
}
