// Package api provides the frontend HTTP API and the Telegram webhook
// endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"telegram-coin-bot/internal/auth"
	"telegram-coin-bot/internal/config"
	"telegram-coin-bot/internal/model"

	tele "gopkg.in/telebot.v3"
)

// Ledger is the balance surface the API needs. Only the withdrawal path
// mutates state; everything else is read-only or identity upsert.
type Ledger interface {
	GetCoins(ctx context.Context, userID int64) (int64, error)
	Withdraw(ctx context.Context, userID int64, amount int64) (int64, error)
	RecentTransactions(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	UpsertFromLogin(ctx context.Context, attrs model.LoginAttributes) (*model.User, error)
}

// BotGateway feeds webhook updates into the bot and manages webhook
// registration with Telegram.
type BotGateway interface {
	ProcessUpdate(update tele.Update)
	SetWebhook(url string) error
}

// HealthChecker reports backing-store reachability for /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server routes the frontend API and the bot webhook.
type Server struct {
	cfg      *config.Config
	ledger   Ledger
	verifier *auth.Verifier
	bot      BotGateway
	health   HealthChecker
	mux      *http.ServeMux
}

// NewServer creates the HTTP server with all routes registered. health may
// be nil, in which case /healthz only reports process liveness.
func NewServer(cfg *config.Config, ledger Ledger, verifier *auth.Verifier, botGateway BotGateway, health HealthChecker) *Server {
	s := &Server{
		cfg:      cfg,
		ledger:   ledger,
		verifier: verifier,
		bot:      botGateway,
		health:   health,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/user/{id}/coins", s.handleGetCoins)
	s.mux.HandleFunc("POST /api/user/{id}/coins/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("GET /api/user/{id}/transactions", s.handleTransactions)
	s.mux.HandleFunc("GET /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/bot", s.handleWebhook)
	s.mux.HandleFunc("GET /api/set-webhook", s.handleSetWebhook)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	return s
}

// Handler returns the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	return RequestLogMiddleware(CORSMiddleware(s.cfg.Login.FrontendURL, s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the common error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
