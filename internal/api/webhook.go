package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// handleWebhook serves POST /api/bot: the Telegram webhook. Telegram keeps
// redelivering an update until it sees 200, so the endpoint acknowledges
// every well-formed request and swallows downstream failures. Fresh updates
// are processed asynchronously after the acknowledgement.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tele.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed webhook body")
		w.WriteHeader(http.StatusOK)
		return
	}

	if stale, age := updateStale(update, time.Now(), s.cfg.Bot.StaleAfter); stale {
		// Acknowledge anyway so Telegram clears the update from its queue.
		log.Info().Dur("age", age).Msg("Ignoring stale update")
		w.WriteHeader(http.StatusOK)
		return
	}

	go s.bot.ProcessUpdate(update)

	w.WriteHeader(http.StatusOK)
}

// updateStale reports whether the update's message is older than the
// staleness threshold. Updates without a timestamped message are never
// considered stale.
func updateStale(update tele.Update, now time.Time, threshold time.Duration) (bool, time.Duration) {
	message := update.Message
	if message == nil && update.Callback != nil {
		message = update.Callback.Message
	}
	if message == nil || message.Unixtime == 0 {
		return false, 0
	}

	age := now.Sub(time.Unix(message.Unixtime, 0))
	return age > threshold, age
}

// setWebhookResponse reports webhook registration.
type setWebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleSetWebhook serves GET /api/set-webhook: registers this deployment's
// webhook URL with Telegram.
func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") == "" {
		scheme = "http"
	}
	webhookURL := scheme + "://" + r.Host + "/api/bot"

	if err := s.bot.SetWebhook(webhookURL); err != nil {
		log.Error().Err(err).Str("url", webhookURL).Msg("Failed to set webhook")
		writeJSON(w, http.StatusInternalServerError, setWebhookResponse{
			Success: false,
			Error:   "Failed to set webhook.",
		})
		return
	}

	log.Info().Str("url", webhookURL).Msg("Webhook registered")
	writeJSON(w, http.StatusOK, setWebhookResponse{
		Success: true,
		Message: "Webhook successfully set to " + webhookURL,
	})
}
