package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-coin-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, applySchema(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// applySchema applies the database schema
func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
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
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_sessions (
			chat_id BIGINT NOT NULL,
			message_id INT NOT NULL,
			correct_option INT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, message_id)
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// seedUser inserts a user with the given balance and returns the row.
func seedUser(t *testing.T, pool *pgxpool.Pool, telegramID, coins int64) *model.User {
	t.Helper()
	repo := NewLedgerRepository(pool)

	user, err := repo.UpsertFromLogin(context.Background(), model.LoginAttributes{
		TelegramID: telegramID,
		Username:   "seeded",
		AuthDate:   time.Now().Unix(),
	})
	require.NoError(t, err)

	if coins != 0 {
		_, err = pool.Exec(context.Background(),
			`UPDATE users SET coins = $2 WHERE id = $1`, user.ID, coins)
		require.NoError(t, err)
		user.Coins = coins
	}
	return user
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_UpsertFromLogin(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	created, err := repo.UpsertFromLogin(ctx, model.LoginAttributes{
		TelegramID: 12345,
		Username:   "alice",
		PhotoURL:   "https://example.com/a.jpg",
		AuthDate:   1700000000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12345), created.TelegramID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, int64(0), created.Coins)

	// Second login for the same identity updates attributes, keeps the row.
	_, err = pool.Exec(ctx, `UPDATE users SET coins = 77 WHERE id = $1`, created.ID)
	require.NoError(t, err)

	updated, err := repo.UpsertFromLogin(ctx, model.LoginAttributes{
		TelegramID: 12345,
		Username:   "alice_renamed",
		AuthDate:   1700001000,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "alice_renamed", updated.Username)
	assert.Equal(t, int64(77), updated.Coins, "balance survives re-login")

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLedgerRepository_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByTelegramID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetCoinsByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedgerRepository_WithLockedUser_CommitAndRollback(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()
	user := seedUser(t, pool, 1001, 100)

	// A returned error rolls back every write made under the lock.
	wantErr := assert.AnError
	err := repo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
		_, err := repo.UpdateCoinsInTx(ctx, tx, locked.ID, 50)
		require.NoError(t, err)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	coins, err := repo.GetCoinsByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), coins, "rollback must leave balance untouched")

	// A nil return commits.
	err = repo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
		newCoins, err := repo.UpdateCoinsInTx(ctx, tx, locked.ID, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(150), newCoins)
		return nil
	})
	require.NoError(t, err)

	coins, err = repo.GetCoinsByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), coins)
}

func TestLedgerRepository_WithLockedUser_UnknownUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)

	err := repo.WithLockedUser(context.Background(), 424242, func(tx pgx.Tx, _ *model.User) error {
		t.Fatal("fn must not run for an unknown user")
		return nil
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// Two lockers against the same row serialize: the second observes the
// first's committed write.
func TestLedgerRepository_WithLockedUser_Serializes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()
	user := seedUser(t, pool, 1002, 0)

	firstInside := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- repo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
			close(firstInside)
			<-releaseFirst
			_, err := repo.UpdateCoinsInTx(ctx, tx, locked.ID, 10)
			return err
		})
	}()

	<-firstInside

	second := make(chan error, 1)
	go func() {
		second <- repo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
			// Must see the first writer's +10 after waiting on the lock.
			assert.Equal(t, int64(10), locked.Coins)
			_, err := repo.UpdateCoinsInTx(ctx, tx, locked.ID, 10)
			return err
		})
	}()

	// Give the second locker time to block on FOR UPDATE, then release.
	time.Sleep(100 * time.Millisecond)
	close(releaseFirst)

	require.NoError(t, <-done)
	require.NoError(t, <-second)

	coins, err := repo.GetCoinsByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), coins)
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository_CreateInTx(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ledgerRepo := NewLedgerRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()
	user := seedUser(t, pool, 2001, 0)

	desc := "test credit"
	err := ledgerRepo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
		if _, err := ledgerRepo.UpdateCoinsInTx(ctx, tx, locked.ID, 20); err != nil {
			return err
		}
		_, err := txRepo.CreateInTx(ctx, tx, locked.ID, 20, model.TxTypeDaily, &desc)
		return err
	})
	require.NoError(t, err)

	records, err := txRepo.GetByUserID(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(20), records[0].Amount)
	assert.Equal(t, model.TxTypeDaily, records[0].Type)

	sum, err := txRepo.SumByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum)
}

// A ledger row must roll back together with the balance write.
func TestTransactionRepository_RollsBackWithBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ledgerRepo := NewLedgerRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()
	user := seedUser(t, pool, 2002, 0)

	desc := "never committed"
	err := ledgerRepo.WithLockedUser(ctx, user.TelegramID, func(tx pgx.Tx, locked *model.User) error {
		if _, err := txRepo.CreateInTx(ctx, tx, locked.ID, 20, model.TxTypeDaily, &desc); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	records, err := txRepo.GetByUserID(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// ============================================================================
// QuizRepository Tests
// ============================================================================

func TestQuizRepository_TakeConsumesOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, 500, 77, 2, time.Minute))

	correct, err := repo.Take(ctx, 500, 77)
	require.NoError(t, err)
	assert.Equal(t, 2, correct)

	// Second take misses: the session was consumed.
	_, err = repo.Take(ctx, 500, 77)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestQuizRepository_ExpiredSessionMisses(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, 500, 78, 1, -time.Second))

	_, err := repo.Take(ctx, 500, 78)
	assert.ErrorIs(t, err, ErrQuizNotFound)

	purged, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestQuizRepository_PutReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, 500, 79, 0, time.Minute))
	require.NoError(t, repo.Put(ctx, 500, 79, 3, time.Minute))

	correct, err := repo.Take(ctx, 500, 79)
	require.NoError(t, err)
	assert.Equal(t, 3, correct)
}

// ============================================================================
// HistoryRepository Tests
// ============================================================================

func TestHistoryRepository_AppendTrimsToWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewHistoryRepository(pool)
	ctx := context.Background()
	user := seedUser(t, pool, 3001, 0)

	const window = 4
	for i := 0; i < 10; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.NoError(t, repo.Append(ctx, user.ID, role, string(rune('a'+i)), window))
	}

	messages, err := repo.Recent(ctx, user.ID, window)
	require.NoError(t, err)
	require.Len(t, messages, window)

	// Oldest-first within the window: the last four appended.
	assert.Equal(t, "g", messages[0].Content)
	assert.Equal(t, "j", messages[3].Content)

	var total int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_history WHERE user_id = $1`, user.ID).Scan(&total))
	assert.Equal(t, window, total, "trim must bound stored rows, not just reads")
}
