package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-coin-bot/internal/model"
)

// HistoryRepository stores per-user AI conversation history, FIFO-trimmed
// to a bounded window.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Append adds one message and trims the user's history to the window, both
// in a single transaction so the window bound always holds.
func (r *HistoryRepository) Append(ctx context.Context, userID int64, role, content string, window int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `
		INSERT INTO chat_history (user_id, role, content, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := tx.Exec(ctx, insert, userID, role, content); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	const trim = `
		DELETE FROM chat_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM chat_history
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`
	if _, err := tx.Exec(ctx, trim, userID, window); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a user in chronological order.
func (r *HistoryRepository) Recent(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error) {
	const query = `
		SELECT id, user_id, role, content, created_at
		FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_history
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var messages []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return messages, nil
}
