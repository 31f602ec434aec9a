package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuizNotFound is returned when no live session exists for a message,
// either because it expired or was already answered.
var ErrQuizNotFound = errors.New("quiz session not found")

// QuizRepository stores pending quiz sessions with a TTL. This is a cache,
// not a source of truth: an expired or missing session just means the quiz
// can no longer be answered.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository instance.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Put stores the correct option for a quiz message, replacing any previous
// session for the same message.
func (r *QuizRepository) Put(ctx context.Context, chatID int64, messageID int, correct int, ttl time.Duration) error {
	const query = `
		INSERT INTO quiz_sessions (chat_id, message_id, correct_option, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chat_id, message_id)
		DO UPDATE SET correct_option = EXCLUDED.correct_option, expires_at = EXCLUDED.expires_at
	`

	_, err := r.pool.Exec(ctx, query, chatID, messageID, correct, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to store quiz session: %w", err)
	}
	return nil
}

// Take consumes the session for a message: it deletes the row and returns
// the stored correct option. A session can be taken at most once; expired
// rows are never returned.
func (r *QuizRepository) Take(ctx context.Context, chatID int64, messageID int) (int, error) {
	const query = `
		DELETE FROM quiz_sessions
		WHERE chat_id = $1 AND message_id = $2 AND expires_at > NOW()
		RETURNING correct_option
	`

	var correct int
	err := r.pool.QueryRow(ctx, query, chatID, messageID).Scan(&correct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuizNotFound
		}
		return 0, fmt.Errorf("failed to take quiz session: %w", err)
	}
	return correct, nil
}

// PurgeExpired removes sessions past their TTL. Called opportunistically;
// expired rows are already invisible to Take and Get.
func (r *QuizRepository) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM quiz_sessions WHERE expires_at <= NOW()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to purge quiz sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
