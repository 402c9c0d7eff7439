package portfolio

import (
	"math/big"
	"time"
)

const (
	daysPerYear = 365
	hoursPerDay = 24

	// TrailingWindow is the standard lookback used for the dashboard's
	// trailing APY figures.
	TrailingWindow = 30 * hoursPerDay * time.Hour
)

// CalculateTrailingYield annualizes the rewards observed in
// [windowStart, windowEnd] (inclusive on both ends) against a principal
// balance, extrapolated to a 365-day basis. Window length is measured in
// fractional 24h days, not truncated calendar days.
//
// Reward amounts are summed with exact integer arithmetic; only the final
// rewards/principal ratio is an IEEE-754 double, so the result is
// display-grade. Every degenerate input (nil or non-positive principal,
// inverted or empty window, no events in window) yields exactly 0 rather
// than an error.
func CalculateTrailingYield(events []*RewardEvent, principal *big.Int, windowStart, windowEnd time.Time) float64 {
	if principal == nil || principal.Sign() <= 0 {
		return 0
	}

	windowDays := windowEnd.Sub(windowStart).Hours() / hoursPerDay
	if windowDays <= 0 {
		return 0
	}

	totalRewards := new(big.Int)
	matched := 0
	for _, ev := range events {
		if ev == nil || ev.Amount == nil {
			continue
		}
		if ev.Timestamp.Before(windowStart) || ev.Timestamp.After(windowEnd) {
			continue
		}
		totalRewards.Add(totalRewards, ev.Amount)
		matched++
	}
	if matched == 0 {
		return 0
	}

	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(totalRewards),
		new(big.Float).SetInt(principal),
	).Float64()

	return ratio * (daysPerYear / windowDays)
}

// SumRewardsInWindow returns the exact integer sum of the reward amounts
// with timestamps in [windowStart, windowEnd].
func SumRewardsInWindow(events []*RewardEvent, windowStart, windowEnd time.Time) *big.Int {
	total := new(big.Int)
	for _, ev := range events {
		if ev == nil || ev.Amount == nil {
			continue
		}
		if ev.Timestamp.Before(windowStart) || ev.Timestamp.After(windowEnd) {
			continue
		}
		total.Add(total, ev.Amount)
	}
	return total
}
