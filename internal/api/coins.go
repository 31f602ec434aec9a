package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-coin-bot/internal/repository"
	"telegram-coin-bot/internal/service"
)

// parseUserID parses the {id} path segment as a positive integer.
func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// handleGetCoins serves GET /api/user/{id}/coins.
func (s *Server) handleGetCoins(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "A valid user ID must be provided.")
		return
	}

	coins, err := s.ledger.GetCoins(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		log.Error().Err(err).Int64("user_id", id).Msg("Failed to fetch coins")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"coins": coins})
}

// transactionEntry is one row of the balance history exposed to the
// frontend.
type transactionEntry struct {
	Amount      int64   `json:"amount"`
	Type        string  `json:"type"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

const transactionHistoryLimit = 50

// handleTransactions serves GET /api/user/{id}/transactions: the newest
// balance deltas, most recent first.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "A valid user ID must be provided.")
		return
	}

	records, err := s.ledger.RecentTransactions(r.Context(), id, transactionHistoryLimit)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		log.Error().Err(err).Int64("user_id", id).Msg("Failed to fetch transactions")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	entries := make([]transactionEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, transactionEntry{
			Amount:      rec.Amount,
			Type:        rec.Type,
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// withdrawRequest is the POST body for a withdrawal.
type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

// withdrawResponse reports a committed withdrawal.
type withdrawResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
}

// insufficientFundsResponse surfaces the balance observed under the row
// lock alongside the rejection.
type insufficientFundsResponse struct {
	Error        string `json:"error"`
	CurrentCoins int64  `json:"currentCoins"`
}

// handleWithdraw serves POST /api/user/{id}/coins/withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "A valid user ID must be provided.")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "A valid, positive withdrawal amount must be provided.")
		return
	}

	newBalance, err := s.ledger.Withdraw(r.Context(), id, req.Amount)
	if err != nil {
		var insufficient *service.InsufficientFundsError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusBadRequest, insufficientFundsResponse{
				Error:        "Insufficient funds.",
				CurrentCoins: insufficient.CurrentCoins,
			})
		case errors.Is(err, repository.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found.")
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "A valid, positive withdrawal amount must be provided.")
		default:
			log.Error().Err(err).Int64("user_id", id).Msg("Withdrawal failed")
			writeError(w, http.StatusInternalServerError, "Internal Server Error during transaction.")
		}
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{
		Success:    true,
		Message:    "Withdrawal successful.",
		NewBalance: newBalance,
	})
}
