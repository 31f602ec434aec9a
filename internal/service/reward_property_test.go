// Property-based tests for the reward policy.
package service

import (
	"testing"

	"pgregory.net/rapid"

	"telegram-coin-bot/internal/config"
)

// Chance winnings always land in [1, chance_max], whatever the configured
// maximum.
func TestChanceWinningsRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := rapid.Int64Range(1, 1000).Draw(t, "chanceMax")
		policy := NewRewardPolicy(config.RewardsConfig{ChanceMax: max})

		for i := 0; i < 50; i++ {
			win := policy.ChanceWinnings()
			if win < 1 || win > max {
				t.Fatalf("winnings %d outside [1, %d]", win, max)
			}
		}
	})
}

// Fixed rewards pass through the configuration untouched.
func TestFixedRewards(t *testing.T) {
	policy := NewRewardPolicy(config.RewardsConfig{
		Daily:        20,
		ChancePerDay: 3,
		QuizCorrect:  15,
		ChatTurn:     10,
	})

	if policy.Daily() != 20 {
		t.Fatalf("daily reward: want 20, got %d", policy.Daily())
	}
	if policy.ChancePerDay() != 3 {
		t.Fatalf("chance per day: want 3, got %d", policy.ChancePerDay())
	}
	if policy.QuizCorrect() != 15 {
		t.Fatalf("quiz reward: want 15, got %d", policy.QuizCorrect())
	}
	if policy.ChatTurn() != 10 {
		t.Fatalf("chat reward: want 10, got %d", policy.ChatTurn())
	}
}
