// Package main is the entry point for the coin bot backend: the Telegram
// webhook bot and the frontend HTTP API in one process.
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

	"telegram-coin-bot/internal/ai"
	"telegram-coin-bot/internal/api"
	"telegram-coin-bot/internal/auth"
	"telegram-coin-bot/internal/bot"
	"telegram-coin-bot/internal/config"
	"telegram-coin-bot/internal/pkg/db"
	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	quizRepo := repository.NewQuizRepository(dbPool.Pool)
	historyRepo := repository.NewHistoryRepository(dbPool.Pool)

	// Initialize services
	policy := service.NewRewardPolicy(cfg.Rewards)
	ledgerService := service.NewLedgerService(ledgerRepo, txRepo, policy)
	aiClient := ai.NewClient(cfg.AI)
	verifier := auth.NewVerifier(cfg.Bot.Token, cfg.Login.MaxAuthAge)

	// Initialize the bot in webhook mode
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:      cfg,
		Ledger:      ledgerService,
		Policy:      policy,
		AI:          aiClient,
		QuizRepo:    quizRepo,
		HistoryRepo: historyRepo,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Initialize the HTTP API (frontend + webhook endpoint)
	server := api.NewServer(cfg, ledgerService, verifier, telegramBot, dbPool)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Periodically drop expired quiz sessions. Expired rows are already
	// invisible to reads; this just keeps the table small.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := quizRepo.PurgeExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("Quiz purge failed")
				} else if n > 0 {
					log.Debug().Int64("purged", n).Msg("Expired quiz sessions removed")
				}
			}
		}
	}()

	// Start the HTTP server
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			username VARCHAR(255) NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			auth_date BIGINT NOT NULL DEFAULT 0,
			coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
			last_daily_claim TIMESTAMPTZ,
			chance_today INT NOT NULL DEFAULT 0,
			last_chance_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: transactions table created")

	// Migration 3: Create quiz_sessions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_sessions (
			chat_id BIGINT NOT NULL,
			message_id INT NOT NULL,
			correct_option INT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, message_id)
		);
		CREATE INDEX IF NOT EXISTS idx_quiz_sessions_expires ON quiz_sessions(expires_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: quiz_sessions table created")

	// Migration 4: Create chat_history table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_history_user ON chat_history(user_id, id DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: chat_history table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
