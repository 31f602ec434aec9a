// Package ai provides the OpenRouter chat-completion client used for
// free-form chat replies and quiz generation.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"telegram-coin-bot/internal/config"
)

// Common errors for AI operations.
var (
	ErrNotConfigured = errors.New("ai: api key is not configured")
	ErrEmptyResponse = errors.New("ai: upstream returned no choices")
)

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Quiz is the structured payload the model returns for /quiz.
type Quiz struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Client calls the OpenRouter chat-completions API. Calls are best-effort:
// callers treat any error as "upstream unavailable" and must not mutate
// balances on failure.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates an OpenRouter client from configuration.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	reqBody := completionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ai: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ai: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ai: upstream returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ai: failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return parsed.Choices[0].Message.Content, nil
}

// Chat returns the model's reply to the given conversation.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, false)
}

const quizPrompt = `Generate one short trivia question. Respond with JSON only, in this exact shape: {"question": "...", "options": ["A) ...", "B) ...", "C) ...", "D) ..."], "answer": "A"}`

// GenerateQuiz asks the model for a quiz and returns it with the index of
// the correct option. The answer letter is matched against option prefixes;
// a payload where no option matches is an error.
func (c *Client) GenerateQuiz(ctx context.Context) (*Quiz, int, error) {
	raw, err := c.complete(ctx, []Message{{Role: "user", Content: quizPrompt}}, true)
	if err != nil {
		return nil, 0, err
	}

	var quiz Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return nil, 0, fmt.Errorf("ai: failed to parse quiz payload: %w", err)
	}
	if quiz.Question == "" || len(quiz.Options) == 0 {
		return nil, 0, fmt.Errorf("ai: incomplete quiz payload")
	}

	correct := -1
	for i, option := range quiz.Options {
		if strings.HasPrefix(option, quiz.Answer) {
			correct = i
			break
		}
	}
	if correct < 0 {
		return nil, 0, fmt.Errorf("ai: quiz answer %q matches no option", quiz.Answer)
	}

	return &quiz, correct, nil
}
