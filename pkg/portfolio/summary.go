package portfolio

import "time"

type SummaryOptions struct {
	// NetworkBenchmarkApy is an external reference rate copied onto the
	// summary for display; it is configuration, never computed here.
	NetworkBenchmarkApy float64

	// BucketMapping overrides the default state→bucket assignment.
	BucketMapping BucketMapping
}

// BuildPortfolioSummary runs the lifecycle bucket aggregation, the custodian
// rollup and the portfolio rollup over one consistent snapshot of validators
// and reward events, as observed at asOf. The rewards bucket is filled with
// the trailing 30-day reward sum and previousMonthApy covers the
// [asOf-60d, asOf-30d) window.
//
// asOf is the only notion of "now" used anywhere; the result is fully
// deterministic for a fixed (validators, events, asOf) tuple.
func BuildPortfolioSummary(validators []*Validator, events []*RewardEvent, asOf time.Time, opts *SummaryOptions) *PortfolioSummary {
	if opts == nil {
		opts = &SummaryOptions{}
	}

	buckets := AggregateByLifecycleState(validators, opts.BucketMapping)
	allocations := RollupByCustodian(validators, events, asOf)
	rollup := RollupToPortfolio(allocations)

	windowStart := asOf.Add(-TrailingWindow)
	buckets[Bucket_Rewards] = SumRewardsInWindow(events, windowStart, asOf)

	// The previous-month window is half-open: an event landing exactly on
	// the 30-day boundary belongs to the current trailing window.
	prevStart := asOf.Add(-2 * TrailingWindow)
	prevEnd := windowStart.Add(-time.Nanosecond)
	previousMonthApy := CalculateTrailingYield(events, rollup.TotalValue, prevStart, prevEnd)

	return &PortfolioSummary{
		TotalValue:          rollup.TotalValue,
		TrailingApy30d:      rollup.TrailingApy30d,
		PreviousMonthApy:    previousMonthApy,
		NetworkBenchmarkApy: opts.NetworkBenchmarkApy,
		ValidatorCount:      rollup.ValidatorCount,
		StateBuckets:        buckets,
		CustodianBreakdown:  allocations,
		AsOf:                asOf,
	}
}
