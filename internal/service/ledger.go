// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"telegram-coin-bot/internal/model"
	"telegram-coin-bot/internal/repository"
)

// Common errors for ledger operations.
var (
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
	ErrNoChancesLeft = errors.New("no chances left today")
)

// InsufficientFundsError rejects a debit that exceeds the balance. It
// carries the balance observed under the row lock so callers can surface it.
type InsufficientFundsError struct {
	CurrentCoins int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: current balance %d", e.CurrentCoins)
}

// DailyCooldownError rejects a daily claim inside the cooldown window.
type DailyCooldownError struct {
	Remaining time.Duration
}

func (e *DailyCooldownError) Error() string {
	return fmt.Sprintf("daily reward already claimed, next claim in %s", e.Remaining)
}

// LedgerService is the only component that mutates balances. Every mutation
// runs as one transaction holding an exclusive lock on the user's row for
// the whole read-validate-write sequence, so concurrent requests against the
// same user are linearized and the balance never goes negative.
type LedgerService struct {
	ledger *repository.LedgerRepository
	txRepo *repository.TransactionRepository
	policy *RewardPolicy
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(
	ledger *repository.LedgerRepository,
	txRepo *repository.TransactionRepository,
	policy *RewardPolicy,
) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		txRepo: txRepo,
		policy: policy,
	}
}

// Credit adds amount coins to a user identified by Telegram ID and returns
// the new balance. The user must already exist: record creation happens only
// through the login flow.
func (s *LedgerService) Credit(ctx context.Context, telegramID int64, amount int64, txType string, description *string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := s.ledger.WithLockedUser(ctx, telegramID, func(tx pgx.Tx, user *model.User) error {
		var err error
		newBalance, err = s.ledger.UpdateCoinsInTx(ctx, tx, user.ID, amount)
		if err != nil {
			return err
		}
		_, err = s.txRepo.CreateInTx(ctx, tx, user.ID, amount, txType, description)
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Debug().
		Int64("telegram_id", telegramID).
		Int64("amount", amount).
		Str("type", txType).
		Int64("new_balance", newBalance).
		Msg("Credit committed")

	return newBalance, nil
}

// Withdraw debits amount coins from a user identified by internal ID. The
// balance check and the write share one row lock; if the amount exceeds the
// balance the transaction rolls back and the error carries the balance that
// was observed.
func (s *LedgerService) Withdraw(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := s.ledger.WithLockedUserByID(ctx, userID, func(tx pgx.Tx, user *model.User) error {
		if user.Coins < amount {
			return &InsufficientFundsError{CurrentCoins: user.Coins}
		}
		var err error
		newBalance, err = s.ledger.UpdateCoinsInTx(ctx, tx, user.ID, -amount)
		if err != nil {
			return err
		}
		desc := "Withdrawal via frontend"
		_, err = s.txRepo.CreateInTx(ctx, tx, user.ID, -amount, model.TxTypeWithdraw, &desc)
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("new_balance", newBalance).
		Msg("Withdrawal committed")

	return newBalance, nil
}

// ClaimResult reports a successful daily claim.
type ClaimResult struct {
	Amount     int64
	NewBalance int64
}

// ClaimDaily grants the time-gated daily reward. The gate check, the credit
// and the timestamp update all happen under the same row lock: without that,
// two concurrent claims could both pass the "not yet claimed today" check.
func (s *LedgerService) ClaimDaily(ctx context.Context, telegramID int64) (*ClaimResult, error) {
	amount := s.policy.Daily()

	var result ClaimResult
	err := s.ledger.WithLockedUser(ctx, telegramID, func(tx pgx.Tx, user *model.User) error {
		ok, remaining := canClaimDaily(user.LastDailyClaim, time.Now(), s.policy.DailyCooldown())
		if !ok {
			return &DailyCooldownError{Remaining: remaining}
		}

		newBalance, err := s.ledger.UpdateCoinsInTx(ctx, tx, user.ID, amount)
		if err != nil {
			return err
		}
		if err := s.ledger.MarkDailyClaimInTx(ctx, tx, user.ID); err != nil {
			return err
		}
		desc := "Daily claim"
		if _, err := s.txRepo.CreateInTx(ctx, tx, user.ID, amount, model.TxTypeDaily, &desc); err != nil {
			return err
		}

		result = ClaimResult{Amount: amount, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("telegram_id", telegramID).
		Int64("new_balance", result.NewBalance).
		Msg("Daily claim committed")

	return &result, nil
}

// ChanceResult reports a successful chance-game play.
type ChanceResult struct {
	Winnings   int64
	NewBalance int64
	Remaining  int
}

// PlayChance plays the randomized chance game. The per-day counter resets
// lazily on the first play after the calendar-day boundary; reset, guard,
// credit and counter bump all share one row lock.
func (s *LedgerService) PlayChance(ctx context.Context, telegramID int64) (*ChanceResult, error) {
	var result ChanceResult
	err := s.ledger.WithLockedUser(ctx, telegramID, func(tx pgx.Tx, user *model.User) error {
		if needsChanceReset(user.LastChanceDate, time.Now()) {
			if err := s.ledger.ResetChanceInTx(ctx, tx, user.ID); err != nil {
				return err
			}
			user.ChanceToday = 0
		}

		if user.ChanceToday >= s.policy.ChancePerDay() {
			return ErrNoChancesLeft
		}

		winnings := s.policy.ChanceWinnings()
		newBalance, err := s.ledger.UpdateCoinsInTx(ctx, tx, user.ID, winnings)
		if err != nil {
			return err
		}
		if err := s.ledger.BumpChanceInTx(ctx, tx, user.ID); err != nil {
			return err
		}
		desc := "Chance game winnings"
		if _, err := s.txRepo.CreateInTx(ctx, tx, user.ID, winnings, model.TxTypeChance, &desc); err != nil {
			return err
		}

		result = ChanceResult{
			Winnings:   winnings,
			NewBalance: newBalance,
			Remaining:  s.policy.ChancePerDay() - user.ChanceToday - 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("telegram_id", telegramID).
		Int64("winnings", result.Winnings).
		Int("remaining", result.Remaining).
		Msg("Chance play committed")

	return &result, nil
}

// GetUserByTelegramID retrieves a user record by identity key.
func (s *LedgerService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.ledger.GetByTelegramID(ctx, telegramID)
}

// RecentTransactions returns the user's newest balance deltas. The user
// must exist; an unknown ID maps to ErrUserNotFound rather than an empty
// history.
func (s *LedgerService) RecentTransactions(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	if _, err := s.ledger.GetCoinsByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.txRepo.GetByUserID(ctx, userID, limit)
}

// GetCoins retrieves the balance of a user by internal ID.
func (s *LedgerService) GetCoins(ctx context.Context, userID int64) (int64, error) {
	return s.ledger.GetCoinsByID(ctx, userID)
}

// UpsertFromLogin creates or refreshes a ledger record from a verified
// login payload.
func (s *LedgerService) UpsertFromLogin(ctx context.Context, attrs model.LoginAttributes) (*model.User, error) {
	return s.ledger.UpsertFromLogin(ctx, attrs)
}
