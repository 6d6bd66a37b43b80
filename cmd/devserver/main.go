// Command devserver is a local fixture implementing the external history,
// reaction-counts and read-cursor HTTP API the engine talks to. Useful for
// development and integration tests; not a production service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	addr := os.Getenv("DEVSERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	dbPath := os.Getenv("DEVSERVER_DB")
	if dbPath == "" {
		dbPath = "huddle-dev.db"
	}
	mode := os.Getenv("DEVSERVER_MODE")
	if mode == "" {
		mode = "release"
	}

	store, err := NewStore(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	srv := &http.Server{
		Addr:    addr,
		Handler: setupRouter(store, mode),
	}

	go func() {
		log.Info().Str("addr", addr).Str("db", dbPath).Msg("devserver started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("devserver exited")
}
