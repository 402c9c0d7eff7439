package exceptions

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"
)

const hoursPerDay = 24

// ratioOf returns |a-b| / b as a float, where a and b are exact integers.
func ratioOf(a, b *big.Int) float64 {
	diff := new(big.Int).Sub(a, b)
	diff.Abs(diff)
	r, _ := new(big.Float).Quo(
		new(big.Float).SetInt(diff),
		new(big.Float).SetInt(b),
	).Float64()
	return r
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func validatorEvidence(v *TransitValidator) []EvidenceLink {
	links := []EvidenceLink{
		{
			Type:  "validator",
			Id:    v.ValidatorId,
			Label: fmt.Sprintf("Validator %s", v.ValidatorId),
		},
	}
	if v.Pubkey != "" {
		links = append(links, EvidenceLink{
			Type:  "explorer",
			Id:    v.Pubkey,
			Label: "Beacon explorer",
			Url:   fmt.Sprintf("https://beaconcha.in/validator/%s", v.Pubkey),
		})
	}
	return links
}

// DetectPortfolioValueChange flags a relative change in total portfolio value
// between two snapshots. Skipped when there is no previous snapshot or its
// value is zero.
func DetectPortfolioValueChange(current, previous *PortfolioSnapshot, cfg *DetectorConfig, now time.Time) *Exception {
	c := cfg.withDefaults()

	if current == nil || previous == nil {
		return nil
	}
	if current.TotalValue == nil || previous.TotalValue == nil || previous.TotalValue.Sign() <= 0 {
		return nil
	}

	change := ratioOf(current.TotalValue, previous.TotalValue)
	if change <= c.PortfolioValueChangeThreshold {
		return nil
	}

	direction := "increased"
	if current.TotalValue.Cmp(previous.TotalValue) < 0 {
		direction = "decreased"
	}

	severity := Severity_Medium
	if change > 0.20 {
		severity = Severity_Critical
	} else if change > 0.10 {
		severity = Severity_High
	}

	title := fmt.Sprintf("Portfolio value %s by %s", direction, formatPercent(change))
	description := fmt.Sprintf(
		"Total portfolio value %s from %s to %s between snapshots (threshold %s)",
		direction,
		previous.TotalValue.String(),
		current.TotalValue.String(),
		formatPercent(c.PortfolioValueChangeThreshold),
	)

	return newException(ExceptionType_PortfolioValueChange, severity, title, description, nil, now)
}

// DetectValidatorCountChange flags a relative change in validator count
// between two snapshots. Skipped when the previous count is zero.
func DetectValidatorCountChange(current, previous *PortfolioSnapshot, cfg *DetectorConfig, now time.Time) *Exception {
	c := cfg.withDefaults()

	if current == nil || previous == nil || previous.ValidatorCount == 0 {
		return nil
	}

	delta := current.ValidatorCount - previous.ValidatorCount
	change := math.Abs(float64(delta)) / float64(previous.ValidatorCount)
	if change <= c.ValidatorCountChangeThreshold {
		return nil
	}

	direction := "increased"
	if delta < 0 {
		direction = "decreased"
	}

	severity := Severity_Medium
	if change > 0.20 {
		severity = Severity_High
	}

	title := fmt.Sprintf("Validator count %s by %s", direction, formatPercent(change))
	description := fmt.Sprintf(
		"Validator count %s from %d to %d between snapshots (threshold %s)",
		direction,
		previous.ValidatorCount,
		current.ValidatorCount,
		formatPercent(c.ValidatorCountChangeThreshold),
	)

	return newException(ExceptionType_ValidatorCountChange, severity, title, description, nil, now)
}

// DetectInTransitStuck emits one exception per validator that has been in a
// transit state longer than the configured number of days. Validators
// without a known transit-start time are skipped.
func DetectInTransitStuck(validators []*TransitValidator, cfg *DetectorConfig, now time.Time) []*Exception {
	c := cfg.withDefaults()

	threshold := time.Duration(c.InTransitStuckThresholdDays) * hoursPerDay * time.Hour

	found := make([]*Exception, 0)
	for _, v := range validators {
		if v == nil || v.TransitStart == nil {
			continue
		}
		stuck := now.Sub(*v.TransitStart)
		if stuck <= threshold {
			continue
		}

		severity := Severity_Medium
		if stuck > 2*threshold {
			severity = Severity_High
		}

		stuckDays := int(stuck.Hours() / hoursPerDay)
		title := fmt.Sprintf("Validator %s stuck in transit for %d days", v.ValidatorId, stuckDays)
		description := fmt.Sprintf(
			"Validator %s has been in state %q since %s, exceeding the %d day threshold",
			v.ValidatorId,
			v.StakeState,
			v.TransitStart.Format(time.RFC3339),
			c.InTransitStuckThresholdDays,
		)

		found = append(found, newException(ExceptionType_InTransitStuck, severity, title, description, validatorEvidence(v), now))
	}
	return found
}

// DetectRewardsAnomaly compares the latest reward-sum point against the mean
// of all earlier points. At least three points are required; the direction of
// the deviation is labeled spike or drop.
func DetectRewardsAnomaly(history []*RewardPoint, cfg *DetectorConfig, now time.Time) *Exception {
	c := cfg.withDefaults()

	points := make([]*RewardPoint, 0, len(history))
	for _, p := range history {
		if p != nil && p.Total != nil {
			points = append(points, p)
		}
	}
	if len(points) < 3 {
		return nil
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].PeriodEnd.Before(points[j].PeriodEnd)
	})

	latest := points[len(points)-1]
	historical := points[:len(points)-1]

	sum := new(big.Int)
	for _, p := range historical {
		sum.Add(sum, p.Total)
	}
	mean, _ := new(big.Float).Quo(
		new(big.Float).SetInt(sum),
		big.NewFloat(float64(len(historical))),
	).Float64()
	if mean <= 0 {
		return nil
	}

	latestValue, _ := new(big.Float).SetInt(latest.Total).Float64()
	deviation := math.Abs(latestValue-mean) / mean
	if deviation <= c.RewardsAnomalyThreshold {
		return nil
	}

	direction := "spike"
	if latestValue < mean {
		direction = "drop"
	}

	severity := Severity_Medium
	if deviation > 2*c.RewardsAnomalyThreshold {
		severity = Severity_High
	}

	title := fmt.Sprintf("Rewards %s: latest period deviates %s from history", direction, formatPercent(deviation))
	description := fmt.Sprintf(
		"Latest reward sum %s deviates %s from the historical average %.0f across %d periods (threshold %s)",
		latest.Total.String(),
		formatPercent(deviation),
		mean,
		len(historical),
		formatPercent(c.RewardsAnomalyThreshold),
	)

	return newException(ExceptionType_RewardsAnomaly, severity, title, description, nil, now)
}

// DetectPerformanceDivergence flags custodians whose trailing yield runs more
// than the threshold below the simple average across custodians. Only
// underperformance is flagged, never outperformance; fewer than two
// custodians is no signal.
func DetectPerformanceDivergence(performance []*CustodianPerformance, cfg *DetectorConfig, now time.Time) []*Exception {
	c := cfg.withDefaults()

	custodians := make([]*CustodianPerformance, 0, len(performance))
	for _, p := range performance {
		if p != nil {
			custodians = append(custodians, p)
		}
	}
	if len(custodians) < 2 {
		return nil
	}

	total := float64(0)
	for _, p := range custodians {
		total += p.TrailingApy30d
	}
	average := total / float64(len(custodians))
	if average <= 0 {
		return nil
	}

	found := make([]*Exception, 0)
	for _, p := range custodians {
		if p.TrailingApy30d >= average {
			continue
		}
		deviation := (average - p.TrailingApy30d) / average
		if deviation <= c.PerformanceDivergenceThreshold {
			continue
		}

		severity := Severity_Medium
		if deviation > 2*c.PerformanceDivergenceThreshold {
			severity = Severity_High
		}

		title := fmt.Sprintf("Custodian %s underperforming by %s", p.CustodianName, formatPercent(deviation))
		description := fmt.Sprintf(
			"Custodian %s trailing APY %s is %s below the cross-custodian average of %s (threshold %s)",
			p.CustodianName,
			formatPercent(p.TrailingApy30d),
			formatPercent(deviation),
			formatPercent(average),
			formatPercent(c.PerformanceDivergenceThreshold),
		)

		links := []EvidenceLink{
			{
				Type:  "custodian",
				Id:    p.CustodianId,
				Label: p.CustodianName,
			},
		}

		found = append(found, newException(ExceptionType_PerformanceDivergence, severity, title, description, links, now))
	}
	return found
}

// RunDetectors evaluates every detector against one detection state. Missing
// signals produce no exceptions, never errors.
func RunDetectors(state *DetectionState, cfg *DetectorConfig, now time.Time) []*Exception {
	if state == nil {
		return []*Exception{}
	}

	found := make([]*Exception, 0)

	if ex := DetectPortfolioValueChange(state.Current, state.Previous, cfg, now); ex != nil {
		found = append(found, ex)
	}
	if ex := DetectValidatorCountChange(state.Current, state.Previous, cfg, now); ex != nil {
		found = append(found, ex)
	}
	found = append(found, DetectInTransitStuck(state.TransitValidators, cfg, now)...)
	if ex := DetectRewardsAnomaly(state.RewardHistory, cfg, now); ex != nil {
		found = append(found, ex)
	}
	found = append(found, DetectPerformanceDivergence(state.CustodianPerformance, cfg, now)...)

	return found
}
