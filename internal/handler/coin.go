// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

const loginPrompt = "Please log in first."

// CoinHandler handles the coin-earning commands backed directly by the
// ledger: /start, /daily and /chance.
type CoinHandler struct {
	ledger *service.LedgerService
}

// NewCoinHandler creates a new CoinHandler.
func NewCoinHandler(ledger *service.LedgerService) *CoinHandler {
	return &CoinHandler{ledger: ledger}
}

// HandleStart handles the /start command.
func (h *CoinHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	return c.Reply(fmt.Sprintf(
		"Welcome, %s!\n\n"+
			"Earn coins with:\n"+
			"/daily - claim your daily bonus\n"+
			"/chance - try your luck (3 per day)\n"+
			"/quiz - answer a trivia question\n\n"+
			"Or just chat with me to earn as you go.",
		sender.FirstName,
	))
}

// HandleDaily handles the /daily command: the time-gated daily reward.
func (h *CoinHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	result, err := h.ledger.ClaimDaily(ctx, sender.ID)
	if err != nil {
		var cooldown *service.DailyCooldownError
		switch {
		case errors.As(err, &cooldown):
			hours := int(cooldown.Remaining.Hours())
			minutes := int(cooldown.Remaining.Minutes()) % 60
			return c.Reply(fmt.Sprintf("Already claimed. Try again in %dh %dm.", hours, minutes))
		case errors.Is(err, repository.ErrUserNotFound):
			return c.Reply(loginPrompt)
		default:
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Daily claim failed")
			return c.Reply("Error claiming daily bonus.")
		}
	}

	return c.Reply(fmt.Sprintf("🎉 +%d coins! New balance: %d.", result.Amount, result.NewBalance))
}

// HandleChance handles the /chance command: the rate-limited random reward.
func (h *CoinHandler) HandleChance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	result, err := h.ledger.PlayChance(ctx, sender.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoChancesLeft):
			return c.Reply("No chances left today.")
		case errors.Is(err, repository.ErrUserNotFound):
			return c.Reply(loginPrompt)
		default:
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Chance play failed")
			return c.Reply("Error with the chance game.")
		}
	}

	return c.Reply(fmt.Sprintf(
		"✨ +%d coins! New balance: %d. You have %d chances left.",
		result.Winnings, result.NewBalance, result.Remaining,
	))
}
