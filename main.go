// main.go
//
// Process entry for the higher-or-pwned server.
// Loads .env, configures logging, opens sqlite, picks the breach counter
// (live range API or offline seeded counts) and serves HTTP until killed.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/config"
	"github.com/higherpwned/server/internal/httpserver"
	"github.com/higherpwned/server/internal/pwned"
	"github.com/higherpwned/server/internal/store"
	"github.com/higherpwned/server/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load password list")
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
	}
	defer db.Close()
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go store.RunSweeper(ctx, mem, time.Minute, cfg.SessionTTL)

	srv := httpserver.New(ctx, httpserver.Deps{
		Store:   mem,
		DB:      db,
		Counter: newCounter(cfg),
		Pool:    words.Default(),
		Config:  cfg,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(":" + cfg.Port) }()
	log.Info().Str("port", cfg.Port).Int("passwords", words.Stats()).Bool("offline", cfg.PwnedOffline).Msg("starting server")

	select {
	case err := <-errc:
		log.Fatal().Err(err).Msg("server exited")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}
}

// newCounter returns the live range client, or seeded pseudo counts when
// PWNED_OFFLINE is set.
func newCounter(cfg config.Config) pwned.Counter {
	if cfg.PwnedOffline {
		st := pwned.NewStatic(nil)
		st.Fallback = pwned.Seeded
		return st
	}
	c := pwned.NewClient(cfg.PwnedAPIURL)
	c.Retries = cfg.PwnedRetries
	return c
}
