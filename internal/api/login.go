package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-coin-bot/internal/auth"
)

// loginPayload is the user snapshot handed to the frontend after a
// successful login, base64-encoded in the redirect URL.
type loginPayload struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	PhotoURL   string `json:"photo_url"`
	Coins      int64  `json:"coins"`
}

// handleLogin serves GET /api/login: the Telegram Login Widget callback.
// The signature is verified before any record is created or updated.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	attrs, err := s.verifier.Verify(r.URL.Query(), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingHash):
			http.Error(w, "Bad Request: No hash provided.", http.StatusBadRequest)
		case errors.Is(err, auth.ErrInvalidHash):
			http.Error(w, "Forbidden: Invalid hash.", http.StatusForbidden)
		case errors.Is(err, auth.ErrStaleAuth):
			http.Error(w, "Forbidden: Authentication data is outdated.", http.StatusForbidden)
		default:
			http.Error(w, "Bad Request.", http.StatusBadRequest)
		}
		return
	}

	user, err := s.ledger.UpsertFromLogin(r.Context(), *attrs)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", attrs.TelegramID).Msg("Login upsert failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(loginPayload{
		ID:         user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		PhotoURL:   user.PhotoURL,
		Coins:      user.Coins,
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	http.Redirect(w, r, s.cfg.Login.FrontendURL+"?user="+encoded, http.StatusFound)
}
