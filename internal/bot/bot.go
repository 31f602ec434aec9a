// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-coin-bot/internal/ai"
	"telegram-coin-bot/internal/config"
	"telegram-coin-bot/internal/handler"
	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies. It runs in
// webhook mode: updates arrive through the HTTP API and are fed into
// ProcessUpdate, so no poller is attached.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	coinHandler *handler.CoinHandler
	quizHandler *handler.QuizHandler
	chatHandler *handler.ChatHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config      *config.Config
	Ledger      *service.LedgerService
	Policy      *service.RewardPolicy
	AI          *ai.Client
	QuizRepo    *repository.QuizRepository
	HistoryRepo *repository.HistoryRepository
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token: deps.Config.Bot.Token,
		// Updates come in via the webhook endpoint; handlers run in the
		// goroutine that calls ProcessUpdate.
		Synchronous: true,
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Unhandled bot handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.coinHandler = handler.NewCoinHandler(deps.Ledger)
	b.quizHandler = handler.NewQuizHandler(deps.Ledger, deps.Policy, deps.AI, deps.QuizRepo, deps.Config.Rewards.QuizTTL)
	b.chatHandler = handler.NewChatHandler(deps.Ledger, deps.Policy, deps.AI, deps.HistoryRepo, deps.Config.Rewards.HistoryWindow)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.coinHandler.HandleStart)
	b.bot.Handle("/daily", b.coinHandler.HandleDaily)
	b.bot.Handle("/chance", b.coinHandler.HandleChance)
	b.bot.Handle("/quiz", b.quizHandler.HandleQuiz)

	// Quiz answers arrive as inline-keyboard callbacks.
	b.bot.Handle(tele.OnCallback, b.handleCallback)

	// Any non-command text goes to the AI chat flow.
	b.bot.Handle(tele.OnText, b.chatHandler.HandleChat)
}

// handleCallback routes callbacks to the quiz handler.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")

	if strings.HasPrefix(data, "quiz_") {
		return b.quizHandler.HandleQuizAnswer(c, data)
	}
	return nil
}

// ProcessUpdate feeds one decoded webhook update into the bot. Handler
// errors are logged via OnError and never propagate to the transport.
func (b *Bot) ProcessUpdate(update tele.Update) {
	b.bot.ProcessUpdate(update)
}

// SetWebhook registers the given URL with Telegram.
func (b *Bot) SetWebhook(url string) error {
	_, err := b.bot.Raw("setWebhook", map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DecodeUpdate parses a webhook request body into a telebot update.
func DecodeUpdate(body []byte) (tele.Update, error) {
	var update tele.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return tele.Update{}, fmt.Errorf("failed to decode update: %w", err)
	}
	return update, nil
}
