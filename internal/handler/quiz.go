package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-coin-bot/internal/ai"
	"telegram-coin-bot/internal/model"
	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

// QuizHandler generates AI quizzes and settles quiz answers.
type QuizHandler struct {
	ledger   *service.LedgerService
	policy   *service.RewardPolicy
	ai       *ai.Client
	quizRepo *repository.QuizRepository
	ttl      time.Duration
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(
	ledger *service.LedgerService,
	policy *service.RewardPolicy,
	aiClient *ai.Client,
	quizRepo *repository.QuizRepository,
	ttl time.Duration,
) *QuizHandler {
	return &QuizHandler{
		ledger:   ledger,
		policy:   policy,
		ai:       aiClient,
		quizRepo: quizRepo,
		ttl:      ttl,
	}
}

// HandleQuiz handles the /quiz command: asks the AI for a question, posts
// it with an inline keyboard and stores the session with a TTL.
func (h *QuizHandler) HandleQuiz(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	_ = c.Reply("Generating a quiz...")

	quiz, correct, err := h.ai.GenerateQuiz(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Quiz generation failed")
		return c.Reply("Could not create a quiz.")
	}

	row := make([]tele.InlineButton, 0, len(quiz.Options))
	for i, option := range quiz.Options {
		row = append(row, tele.InlineButton{
			Text: option,
			Data: fmt.Sprintf("quiz_%d", i),
		})
	}
	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}

	sent, err := c.Bot().Send(chat, "❓ *"+quiz.Question+"*", markup, tele.ModeMarkdown)
	if err != nil {
		return fmt.Errorf("failed to send quiz: %w", err)
	}

	if err := h.quizRepo.Put(ctx, chat.ID, sent.ID, correct, h.ttl); err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to store quiz session")
	}
	return nil
}

// HandleQuizAnswer settles a quiz_N inline-keyboard callback. The session
// is consumed exactly once: a second tap or an expired quiz edits the
// message instead of crediting again.
func (h *QuizHandler) HandleQuizAnswer(c tele.Context, data string) error {
	ctx := context.Background()
	callback := c.Callback()
	if callback == nil || callback.Message == nil {
		return nil
	}

	_ = c.Respond()

	selected, err := strconv.Atoi(strings.TrimPrefix(data, "quiz_"))
	if err != nil {
		return nil
	}

	chat := callback.Message.Chat
	correct, err := h.quizRepo.Take(ctx, chat.ID, callback.Message.ID)
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			return c.Edit("Quiz expired or already answered.")
		}
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to load quiz session")
		return c.Edit("Something went wrong. Please try again later.")
	}

	if selected != correct {
		return c.Edit("❌ Wrong answer!")
	}

	reward := h.policy.QuizCorrect()
	desc := "Correct quiz answer"
	newBalance, err := h.ledger.Credit(ctx, callback.Sender.ID, reward, model.TxTypeQuiz, &desc)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Edit("You need to /login first to earn coins!")
		}
		log.Error().Err(err).Int64("user_id", callback.Sender.ID).Msg("Quiz reward credit failed")
		return c.Edit("An error occurred while updating your coin balance.")
	}

	return c.Edit(fmt.Sprintf("✅ Correct! +%d coins. New balance: %d.", reward, newBalance))
}
