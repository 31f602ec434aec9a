// Property-based tests for the reward gating logic.
package service

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// For any last-claim time: a nil timestamp always allows a claim; otherwise
// the claim is allowed exactly when the cooldown has fully elapsed, and the
// reported remainder covers the gap.
func TestDailyClaimGateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(1_600_000_000, 1_900_000_000).Draw(t, "now"), 0)
		cooldown := time.Duration(rapid.IntRange(1, 48).Draw(t, "cooldownHours")) * time.Hour

		if rapid.Bool().Draw(t, "neverClaimed") {
			ok, remaining := canClaimDaily(nil, now, cooldown)
			if !ok || remaining != 0 {
				t.Fatalf("nil last claim must allow: ok=%v remaining=%v", ok, remaining)
			}
			return
		}

		elapsed := time.Duration(rapid.Int64Range(0, 72*3600).Draw(t, "elapsedSeconds")) * time.Second
		lastClaim := now.Add(-elapsed)

		ok, remaining := canClaimDaily(&lastClaim, now, cooldown)

		if elapsed >= cooldown {
			if !ok {
				t.Fatalf("claim %v after last (cooldown %v) must be allowed", elapsed, cooldown)
			}
			if remaining != 0 {
				t.Fatalf("allowed claim must report zero remaining, got %v", remaining)
			}
		} else {
			if ok {
				t.Fatalf("claim %v after last (cooldown %v) must be gated", elapsed, cooldown)
			}
			if remaining != cooldown-elapsed {
				t.Fatalf("remaining mismatch: want %v, got %v", cooldown-elapsed, remaining)
			}
		}
	})
}

// The chance counter resets on the local calendar-day boundary, not on a
// rolling 24-hour window.
func TestChanceResetProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(1_600_000_000, 1_900_000_000).Draw(t, "now"), 0)
		back := time.Duration(rapid.Int64Range(0, 7*24*3600).Draw(t, "backSeconds")) * time.Second
		last := now.Add(-back)

		got := needsChanceReset(&last, now)

		ly, lm, ld := last.Local().Date()
		ny, nm, nd := now.Local().Date()
		want := ly != ny || lm != nm || ld != nd

		if got != want {
			t.Fatalf("reset mismatch for last=%v now=%v: want %v, got %v", last, now, want, got)
		}
	})
}

func TestChanceResetNeverPlayed(t *testing.T) {
	if !needsChanceReset(nil, time.Now()) {
		t.Fatal("nil last-chance date must reset")
	}
}

// Late-evening plays must not carry into the next morning even though less
// than 24 hours have passed.
func TestChanceResetAcrossMidnight(t *testing.T) {
	evening := time.Date(2026, 8, 29, 23, 50, 0, 0, time.Local)
	morning := time.Date(2026, 8, 30, 0, 10, 0, 0, time.Local)

	if !needsChanceReset(&evening, morning) {
		t.Fatal("crossing midnight must reset the counter")
	}
	if needsChanceReset(&evening, evening.Add(5*time.Minute)) {
		t.Fatal("same evening must not reset the counter")
	}
}
