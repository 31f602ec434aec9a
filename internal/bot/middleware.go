package bot

import (
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// LoggingMiddleware logs every update with its handling duration.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			evt := log.Debug().Dur("duration", time.Since(start))
			if sender := c.Sender(); sender != nil {
				evt = evt.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				evt = evt.Int64("chat_id", chat.ID)
			}
			if err != nil {
				evt = evt.Err(err)
			}
			evt.Str("text", c.Text()).Msg("Update handled")

			return err
		}
	}
}

// RecoveryMiddleware recovers from handler panics. The webhook transport has
// already been acknowledged, so the user gets a best-effort apology message
// and nothing else.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Recovered from handler panic")
					_ = c.Reply("Something went wrong. Please try again later.")
				}
			}()
			return next(c)
		}
	}
}
