package portfolio

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_CalculateTrailingYield(t *testing.T) {
	asOf := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	windowStart := asOf.Add(-TrailingWindow)

	t.Run("Test that a 30-day window annualizes by 365/30", func(t *testing.T) {
		principal := big.NewInt(1_000_000)
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf.Add(-time.Hour)},
			{ValidatorId: "v1", Amount: big.NewInt(2_000), Timestamp: asOf.Add(-10 * 24 * time.Hour)},
		}

		yield := CalculateTrailingYield(events, principal, windowStart, asOf)

		// 3000/1000000 * 365/30
		assert.InDelta(t, 0.003*(365.0/30.0), yield, 1e-12)
	})

	t.Run("Test that a nil principal yields zero", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf},
		}
		assert.Zero(t, CalculateTrailingYield(events, nil, windowStart, asOf))
	})

	t.Run("Test that a zero principal yields zero", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf},
		}
		assert.Zero(t, CalculateTrailingYield(events, big.NewInt(0), windowStart, asOf))
	})

	t.Run("Test that a negative principal yields zero", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf},
		}
		assert.Zero(t, CalculateTrailingYield(events, big.NewInt(-5), windowStart, asOf))
	})

	t.Run("Test that an inverted window yields zero", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf},
		}
		assert.Zero(t, CalculateTrailingYield(events, big.NewInt(1_000_000), asOf, windowStart))
	})

	t.Run("Test that a window with no events yields zero", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: windowStart.Add(-time.Hour)},
			{ValidatorId: "v1", Amount: big.NewInt(1_000), Timestamp: asOf.Add(time.Hour)},
		}
		assert.Zero(t, CalculateTrailingYield(events, big.NewInt(1_000_000), windowStart, asOf))
	})

	t.Run("Test that boundary events are included on both ends", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(100), Timestamp: windowStart},
			{ValidatorId: "v1", Amount: big.NewInt(100), Timestamp: asOf},
		}
		yield := CalculateTrailingYield(events, big.NewInt(1_000_000), windowStart, asOf)
		assert.InDelta(t, 0.0002*(365.0/30.0), yield, 1e-12)
	})

	t.Run("Test that nil events and nil amounts are skipped", func(t *testing.T) {
		events := []*RewardEvent{
			nil,
			{ValidatorId: "v1", Amount: nil, Timestamp: asOf},
			{ValidatorId: "v1", Amount: big.NewInt(500), Timestamp: asOf},
		}
		yield := CalculateTrailingYield(events, big.NewInt(1_000_000), windowStart, asOf)
		assert.InDelta(t, 0.0005*(365.0/30.0), yield, 1e-12)
	})
}

func Test_SumRewardsInWindow(t *testing.T) {
	asOf := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	windowStart := asOf.Add(-TrailingWindow)

	t.Run("Test that only in-window events are summed", func(t *testing.T) {
		events := []*RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(100), Timestamp: windowStart.Add(-time.Second)},
			{ValidatorId: "v1", Amount: big.NewInt(200), Timestamp: windowStart},
			{ValidatorId: "v2", Amount: big.NewInt(300), Timestamp: asOf},
			{ValidatorId: "v2", Amount: big.NewInt(400), Timestamp: asOf.Add(time.Second)},
		}
		assert.Equal(t, "500", SumRewardsInWindow(events, windowStart, asOf).String())
	})

	t.Run("Test that no events sum to zero", func(t *testing.T) {
		assert.Equal(t, "0", SumRewardsInWindow(nil, windowStart, asOf).String())
	})
}
