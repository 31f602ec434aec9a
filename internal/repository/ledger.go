// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-coin-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, telegram_id, username, photo_url, auth_date, coins,
		last_daily_claim, chance_today, last_chance_date, created_at, updated_at`

// LedgerRepository owns the users table: balances and reward-gating state.
// Balance fields are only ever written through WithLockedUser /
// WithLockedUserByID, which serialize read-modify-write per row.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.PhotoURL,
		&user.AuthDate,
		&user.Coins,
		&user.LastDailyClaim,
		&user.ChanceToday,
		&user.LastChanceDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by their internal (frontend-facing) ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByTelegramID retrieves a user by their Telegram identity key.
// Returns ErrUserNotFound if the user does not exist.
func (r *LedgerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetCoinsByID retrieves just the balance for a user by internal ID.
func (r *LedgerRepository) GetCoinsByID(ctx context.Context, id int64) (int64, error) {
	const query = `SELECT coins FROM users WHERE id = $1`

	var coins int64
	err := r.pool.QueryRow(ctx, query, id).Scan(&coins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get coins: %w", err)
	}
	return coins, nil
}

// UpsertFromLogin creates or refreshes a user row from a verified login
// payload. The identity key is the conflict target; login attributes are
// overwritten, balance and gating state are preserved.
func (r *LedgerRepository) UpsertFromLogin(ctx context.Context, attrs model.LoginAttributes) (*model.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, photo_url, auth_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			photo_url = EXCLUDED.photo_url,
			auth_date = EXCLUDED.auth_date,
			updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query,
		attrs.TelegramID, attrs.Username, attrs.PhotoURL, attrs.AuthDate))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// LockedUserFunc runs inside the mutation transaction while the user row is
// exclusively locked. Any write it performs through tx commits or rolls back
// atomically with the balance change.
type LockedUserFunc func(tx pgx.Tx, user *model.User) error

// WithLockedUser begins a transaction, takes an exclusive lock on the user
// row identified by Telegram ID, and runs fn under that lock. The
// transaction commits if fn returns nil and rolls back otherwise, so no
// partial mutation is ever observable.
func (r *LedgerRepository) WithLockedUser(ctx context.Context, telegramID int64, fn LockedUserFunc) error {
	return r.withLockedRow(ctx, `telegram_id`, telegramID, fn)
}

// WithLockedUserByID is WithLockedUser keyed by the internal user ID, used
// by the frontend withdrawal path.
func (r *LedgerRepository) WithLockedUserByID(ctx context.Context, id int64, fn LockedUserFunc) error {
	return r.withLockedRow(ctx, `id`, id, fn)
}

func (r *LedgerRepository) withLockedRow(ctx context.Context, keyColumn string, key int64, fn LockedUserFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + keyColumn + ` = $1 FOR UPDATE`

	user, err := scanUser(tx.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to lock user row: %w", err)
	}

	if err := fn(tx, user); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// UpdateCoinsInTx applies a signed delta to the locked user's balance and
// returns the new balance. Must be called with the row lock held, i.e. from
// inside a LockedUserFunc.
func (r *LedgerRepository) UpdateCoinsInTx(ctx context.Context, tx pgx.Tx, id int64, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET coins = coins + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING coins
	`

	var coins int64
	if err := tx.QueryRow(ctx, query, id, delta).Scan(&coins); err != nil {
		return 0, fmt.Errorf("failed to update coins: %w", err)
	}
	return coins, nil
}

// MarkDailyClaimInTx stamps the daily-claim gate. Must share the mutation's
// row lock so two concurrent claims cannot both pass the gate.
func (r *LedgerRepository) MarkDailyClaimInTx(ctx context.Context, tx pgx.Tx, id int64) error {
	const query = `
		UPDATE users
		SET last_daily_claim = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark daily claim: %w", err)
	}
	return nil
}

// ResetChanceInTx zeroes the per-day chance counter after a calendar-day
// boundary. Lazy reset: called on first access of the new day, under the
// row lock.
func (r *LedgerRepository) ResetChanceInTx(ctx context.Context, tx pgx.Tx, id int64) error {
	const query = `
		UPDATE users
		SET chance_today = 0, last_chance_date = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to reset chance counter: %w", err)
	}
	return nil
}

// BumpChanceInTx increments the per-day chance counter.
func (r *LedgerRepository) BumpChanceInTx(ctx context.Context, tx pgx.Tx, id int64) error {
	const query = `
		UPDATE users
		SET chance_today = chance_today + 1, last_chance_date = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to bump chance counter: %w", err)
	}
	return nil
}
