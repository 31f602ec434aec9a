package service

import "time"

// canClaimDaily reports whether the daily reward may be granted and, if not,
// how long until the next claim. A nil last claim means never claimed.
func canClaimDaily(lastClaim *time.Time, now time.Time, cooldown time.Duration) (bool, time.Duration) {
	if lastClaim == nil {
		return true, 0
	}

	next := lastClaim.Add(cooldown)
	if !now.Before(next) {
		return true, 0
	}
	return false, next.Sub(now)
}

// needsChanceReset reports whether the per-day chance counter belongs to a
// previous calendar day. The boundary is the local calendar date, not a
// rolling 24-hour window, and the reset happens on first access after it.
func needsChanceReset(lastChance *time.Time, now time.Time) bool {
	if lastChance == nil {
		return true
	}
	ly, lm, ld := lastChance.Local().Date()
	ny, nm, nd := now.Local().Date()
	return ly != ny || lm != nm || ld != nd
}
