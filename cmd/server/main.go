package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/lmittmann/tint"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/adapters/s3store"
)

func main() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg)
	alog := slogAdapter{logger}

	ctx := context.Background()

	db, err := openDB(ctx, cfg.DSN)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer db.Close()

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	tokens := accounts.NewTokenAuthority(repo.Users(), repo.AuthTokens())

	var notifier accounts.Notifier
	if cfg.ResendAPIKey != "" {
		notifier = accounts.NewMailNotifier(cfg.ResendAPIKey, cfg.ResendFrom, alog)
	} else {
		notifier = accounts.LogNotifier{Logger: alog}
	}

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	srv.Router().Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{"status": "ok"})
	})

	auth := accounts.NewAuthMiddleware(tokens)
	auth.Logger = alog

	api := srv.Router().Group("/api")

	ctrl := accounts.NewAccountsController(
		accounts.WithControllerRepo(repo),
		accounts.WithControllerTokens(tokens),
		accounts.WithControllerNotifier(notifier),
		accounts.WithControllerConfig(cfg),
		accounts.WithControllerStorage(storage),
		accounts.WithControllerLogger(alog),
	)
	ctrl.RegisterRoutes(api, auth)

	admin := accounts.NewAdminController(repo, tokens, notifier, cfg, storage, nil)
	admin.Logger = alog
	admin.RegisterRoutes(api, auth)

	mail := accounts.NewMailRequestController(repo, notifier, cfg)
	mail.Logger = alog
	mail.RegisterRoutes(api, auth)

	logger.Info("accounts server started", "port", cfg.Port, "env", cfg.Env)
	srv.Serve(":" + cfg.Port)

	waitExitSignal()
	logger.Info("shutting down")
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	models := []any{
		(*accounts.User)(nil),
		(*accounts.Profile)(nil),
		(*accounts.Session)(nil),
		(*accounts.AuthToken)(nil),
		(*accounts.MailRequest)(nil),
		(*accounts.MailRequestMessage)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	return db, nil
}

func newStorage(ctx context.Context, cfg *Config) (accounts.FileStorage, error) {
	if cfg.S3Bucket != "" {
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return accounts.NewLocalStorage(cfg.StorageDir, cfg.StorageURL), nil
}

func newLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})
	}
	return slog.New(handler)
}

// slogAdapter bridges the printf style logger the accounts package
// expects onto slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Debug(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Info(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Error(format string, args ...any) {
	s.logger.Error(fmt.Sprintf(format, args...))
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
