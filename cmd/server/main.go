package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ataccountancy/intake-portal/internal/config"
	"github.com/ataccountancy/intake-portal/internal/db"
	"github.com/ataccountancy/intake-portal/internal/notify"
	"github.com/ataccountancy/intake-portal/internal/services"
	"github.com/ataccountancy/intake-portal/internal/storage"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func withLogging(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func newStore(cfg config.Config, log zerolog.Logger) storage.Store {
	if cfg.StorageDriver == "s3" {
		store, err := storage.NewS3(context.Background(), cfg.S3Region, cfg.S3Bucket, cfg.S3BaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("init s3 store")
		}
		return store
	}
	store, err := storage.NewDisk(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("init disk store")
	}
	return store
}

func newNotifier(cfg config.Config, log zerolog.Logger) notify.Notifier {
	if cfg.ResendAPIKey == "" {
		log.Warn().Msg("RESEND_API_KEY not set; notifications disabled")
		return notify.Disabled{}
	}
	return notify.NewResend(cfg.ResendAPIKey, cfg.MailFrom, strings.Split(cfg.MailTo, ","))
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()

	if *migrateOnlyFlag {
		if _, err := db.ConnectAndMigrate(cfg.DatabaseDSN, log); err != nil {
			log.Fatal().Err(err).Msg("migrate-only failed")
		}
		log.Info().Msg("migrations completed; exiting as requested")
		return
	}

	conn, err := db.ConnectAndMigrate(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	svc := services.NewSubmissionService(conn, newStore(cfg, log), newNotifier(cfg, log), log)
	app := NewApp(conn, cfg, svc)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: withLogging(log, app)}
	go func() {
		log.Info().Str("env", cfg.Env).Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
