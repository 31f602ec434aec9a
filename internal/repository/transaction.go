package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-coin-bot/internal/model"
)

// TransactionRepository handles the append-only ledger of balance deltas.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const insertTransaction = `
	INSERT INTO transactions (user_id, amount, type, description, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING id, user_id, amount, type, description, created_at
`

// CreateInTx records a balance delta inside the mutation's own transaction,
// so the ledger row commits or rolls back together with the balance write.
func (r *TransactionRepository) CreateInTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64, txType string, description *string) (*model.Transaction, error) {
	var rec model.Transaction
	err := tx.QueryRow(ctx, insertTransaction, userID, amount, txType, description).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Amount,
		&rec.Type,
		&rec.Description,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return &rec, nil
}

// GetByUserID retrieves recent transactions for a user, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, user_id, amount, type, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var rec model.Transaction
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Amount,
			&rec.Type,
			&rec.Description,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// SumByUserID returns the sum of all recorded deltas for a user. Used by
// tests to check the committed-deltas accounting invariant.
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}
