// Package model defines the data models for the coin bot backend.
package model

import "time"

// User represents a ledger record: one row per end user.
// The serial ID is what the web frontend addresses; TelegramID is the
// stable external identity key used by bot flows.
type User struct {
	ID             int64      `db:"id"`
	TelegramID     int64      `db:"telegram_id"`
	Username       string     `db:"username"`
	PhotoURL       string     `db:"photo_url"`
	AuthDate       int64      `db:"auth_date"`
	Coins          int64      `db:"coins"`
	LastDailyClaim *time.Time `db:"last_daily_claim"`
	ChanceToday    int        `db:"chance_today"`
	LastChanceDate *time.Time `db:"last_chance_date"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// LoginAttributes holds the identity-provider fields upserted on a
// successful login-widget callback.
type LoginAttributes struct {
	TelegramID int64
	Username   string
	PhotoURL   string
	AuthDate   int64
}

// Transaction represents one committed balance delta.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// ChatMessage is one turn of a user's AI conversation history.
// Rows are append-only and FIFO-trimmed to a bounded window per user.
type ChatMessage struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// Chat history roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transaction types for categorizing balance changes.
const (
	TxTypeDaily    = "daily"    // Daily claim reward
	TxTypeChance   = "chance"   // Chance game winnings
	TxTypeQuiz     = "quiz"     // Correct quiz answer reward
	TxTypeChat     = "chat"     // AI chat turn reward
	TxTypeWithdraw = "withdraw" // Withdrawal through the frontend API
)
