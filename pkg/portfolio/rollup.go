package portfolio

import (
	"math/big"
	"sort"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type custodianGroup struct {
	custodianId   string
	custodianName string
	value         *big.Int
	validatorIds  map[string]bool
	count         int
}

// RollupByCustodian groups validators by custodian, sums balances, computes
// each custodian's share of the portfolio total and its trailing 30-day APY
// from that custodian's reward events. The window ends at asOf.
//
// Output is ordered by value descending with custodian id ascending as the
// tie-break, so the breakdown is reproducible across runs. Validators with no
// custodian id are malformed input and are excluded from every group.
func RollupByCustodian(validators []*Validator, events []*RewardEvent, asOf time.Time) []*CustodianAllocation {
	groups := orderedmap.New[string, *custodianGroup]()

	for _, v := range validators {
		if v == nil || v.CustodianId == "" {
			continue
		}
		group, ok := groups.Get(v.CustodianId)
		if !ok {
			group = &custodianGroup{
				custodianId:   v.CustodianId,
				custodianName: v.CustodianName,
				value:         new(big.Int),
				validatorIds:  make(map[string]bool),
			}
			groups.Set(v.CustodianId, group)
		}
		if v.Balance != nil {
			group.value.Add(group.value, v.Balance)
		}
		group.validatorIds[v.ValidatorId] = true
		group.count++
	}

	totalValue := new(big.Int)
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		totalValue.Add(totalValue, pair.Value.value)
	}

	windowStart := asOf.Add(-TrailingWindow)

	allocations := make([]*CustodianAllocation, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		group := pair.Value

		custodianEvents := make([]*RewardEvent, 0)
		for _, ev := range events {
			if ev == nil {
				continue
			}
			if group.validatorIds[ev.ValidatorId] {
				custodianEvents = append(custodianEvents, ev)
			}
		}

		percentage := float64(0)
		if totalValue.Sign() > 0 {
			percentage, _ = new(big.Float).Quo(
				new(big.Float).SetInt(group.value),
				new(big.Float).SetInt(totalValue),
			).Float64()
		}

		allocations = append(allocations, &CustodianAllocation{
			CustodianId:    group.custodianId,
			CustodianName:  group.custodianName,
			Value:          group.value,
			Percentage:     percentage,
			TrailingApy30d: CalculateTrailingYield(custodianEvents, group.value, windowStart, asOf),
			ValidatorCount: group.count,
		})
	}

	sort.Slice(allocations, func(i, j int) bool {
		cmp := allocations[i].Value.Cmp(allocations[j].Value)
		if cmp != 0 {
			return cmp > 0
		}
		return allocations[i].CustodianId < allocations[j].CustodianId
	})

	return allocations
}

// RollupToPortfolio collapses custodian allocations into portfolio totals.
// The portfolio APY is the value-weighted average of the allocation yields,
// 0 when the portfolio holds no value.
func RollupToPortfolio(allocations []*CustodianAllocation) *PortfolioRollup {
	totalValue := new(big.Int)
	validatorCount := 0
	for _, a := range allocations {
		if a == nil {
			continue
		}
		if a.Value != nil {
			totalValue.Add(totalValue, a.Value)
		}
		validatorCount += a.ValidatorCount
	}

	weightedApy := float64(0)
	if totalValue.Sign() > 0 {
		totalFloat := new(big.Float).SetInt(totalValue)
		for _, a := range allocations {
			if a == nil || a.Value == nil {
				continue
			}
			weight, _ := new(big.Float).Quo(new(big.Float).SetInt(a.Value), totalFloat).Float64()
			weightedApy += a.TrailingApy30d * weight
		}
	}

	return &PortfolioRollup{
		TotalValue:     totalValue,
		TrailingApy30d: weightedApy,
		ValidatorCount: validatorCount,
	}
}
