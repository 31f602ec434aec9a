// Package auth verifies Telegram Login Widget callback payloads.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"telegram-coin-bot/internal/model"
)

// Verification errors. Handlers map these to 400/403.
var (
	ErrMissingHash  = errors.New("auth: no hash provided")
	ErrInvalidHash  = errors.New("auth: invalid hash")
	ErrStaleAuth    = errors.New("auth: authentication data is outdated")
	ErrMissingField = errors.New("auth: required field missing")
)

// Verifier checks login-widget signatures against the shared bot token.
type Verifier struct {
	secret     []byte
	maxAuthAge time.Duration
}

// NewVerifier derives the HMAC secret from the bot token: the widget signs
// with SHA-256(bot_token) as the key.
func NewVerifier(botToken string, maxAuthAge time.Duration) *Verifier {
	secret := sha256.Sum256([]byte(botToken))
	return &Verifier{secret: secret[:], maxAuthAge: maxAuthAge}
}

// checkString builds the data-check-string: every parameter except the hash
// itself, as sorted key=value pairs joined by newlines.
func checkString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+query.Get(key))
	}
	return strings.Join(pairs, "\n")
}

// Verify validates the signature and freshness of a login callback and
// returns the identity attributes to upsert. It rejects a payload whose
// hash does not match (any single tampered character fails) and a payload
// whose auth_date is older than the configured maximum.
func (v *Verifier) Verify(query url.Values, now time.Time) (*model.LoginAttributes, error) {
	providedHash := query.Get("hash")
	if providedHash == "" {
		return nil, ErrMissingHash
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(checkString(query)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(providedHash)) {
		return nil, ErrInvalidHash
	}

	authDate, err := strconv.ParseInt(query.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: auth_date", ErrMissingField)
	}
	if now.Unix()-authDate > int64(v.maxAuthAge.Seconds()) {
		return nil, ErrStaleAuth
	}

	telegramID, err := strconv.ParseInt(query.Get("id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}

	return &model.LoginAttributes{
		TelegramID: telegramID,
		Username:   query.Get("username"),
		PhotoURL:   query.Get("photo_url"),
		AuthDate:   authDate,
	}, nil
}

// Sign computes the widget signature for the given parameters. Used by
// tests to build valid payloads.
func (v *Verifier) Sign(query url.Values) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(checkString(query)))
	return hex.EncodeToString(mac.Sum(nil))
}
