package service

import (
	"math/rand"
	"time"

	"telegram-coin-bot/internal/config"
)

// RewardPolicy maps user actions to coin deltas. It is a pure rule set: it
// performs no locking and no I/O, and feeds amounts into the LedgerService.
type RewardPolicy struct {
	cfg config.RewardsConfig
}

// NewRewardPolicy creates a RewardPolicy from configuration.
func NewRewardPolicy(cfg config.RewardsConfig) *RewardPolicy {
	return &RewardPolicy{cfg: cfg}
}

// Daily returns the fixed daily-claim reward.
func (p *RewardPolicy) Daily() int64 {
	return p.cfg.Daily
}

// DailyCooldown returns the daily-claim cooldown window.
func (p *RewardPolicy) DailyCooldown() time.Duration {
	return p.cfg.DailyCooldown
}

// ChanceWinnings draws a random win in [1, chance_max].
func (p *RewardPolicy) ChanceWinnings() int64 {
	return int64(rand.Intn(int(p.cfg.ChanceMax))) + 1
}

// ChancePerDay returns the per-day chance play limit.
func (p *RewardPolicy) ChancePerDay() int {
	return p.cfg.ChancePerDay
}

// QuizCorrect returns the reward for a correct quiz answer.
func (p *RewardPolicy) QuizCorrect() int64 {
	return p.cfg.QuizCorrect
}

// ChatTurn returns the reward for one successful AI chat turn.
func (p *RewardPolicy) ChatTurn() int64 {
	return p.cfg.ChatTurn
}
