package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-coin-bot/internal/ai"
	"telegram-coin-bot/internal/model"
	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

// ChatHandler routes free-form text through the AI responder. The chat-turn
// reward is credited only after the AI call has succeeded, so an upstream
// failure never mutates the ledger.
type ChatHandler struct {
	ledger      *service.LedgerService
	policy      *service.RewardPolicy
	ai          *ai.Client
	historyRepo *repository.HistoryRepository
	window      int
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(
	ledger *service.LedgerService,
	policy *service.RewardPolicy,
	aiClient *ai.Client,
	historyRepo *repository.HistoryRepository,
	window int,
) *ChatHandler {
	return &ChatHandler{
		ledger:      ledger,
		policy:      policy,
		ai:          aiClient,
		historyRepo: historyRepo,
		window:      window,
	}
}

// HandleChat handles any non-command text message.
func (h *ChatHandler) HandleChat(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	text := c.Text()
	if sender == nil || text == "" || strings.HasPrefix(text, "/") {
		return nil
	}

	// Registered users get their bounded history as context; unknown users
	// still get an answer, just no coins.
	var user *model.User
	var messages []ai.Message
	if u, err := h.ledger.GetUserByTelegramID(ctx, sender.ID); err == nil {
		user = u
		recent, err := h.historyRepo.Recent(ctx, user.ID, h.window)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to load chat history")
		}
		for _, m := range recent {
			messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, ai.Message{Role: model.RoleUser, Content: text})

	reply, err := h.ai.Chat(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", sender.ID).Msg("AI chat failed")
		return c.Reply("AI is not available right now.")
	}

	if err := c.Reply(reply); err != nil {
		return err
	}

	if user == nil {
		return c.Reply("You need to /login first to earn coins!")
	}

	desc := "AI chat turn"
	if _, err := h.ledger.Credit(ctx, sender.ID, h.policy.ChatTurn(), model.TxTypeChat, &desc); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Reply("You need to /login first to earn coins!")
		}
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Chat reward credit failed")
		return c.Reply("An error occurred while updating your coin balance.")
	}

	if err := h.historyRepo.Append(ctx, user.ID, model.RoleUser, text, h.window); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to append user turn")
	}
	if err := h.historyRepo.Append(ctx, user.ID, model.RoleAssistant, reply, h.window); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to append assistant turn")
	}

	return nil
}
