package reports

import (
	"math/big"
	"time"

	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/types/numbers"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StatementPeriod is one calendar month, End inclusive.
type StatementPeriod struct {
	Month string    `json:"month"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseStatementMonth parses a "2006-01" month string into its period.
func ParseStatementMonth(month string) (StatementPeriod, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return StatementPeriod{}, errors.Wrapf(err, "invalid statement month '%s'", month)
	}
	return StatementPeriod{
		Month: month,
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}, nil
}

// StatementRow is one custodian line on the monthly statement. Values are
// decimal strings in base units so the export is lossless.
type StatementRow struct {
	CustodianId    string `csv:"custodian_id" json:"custodianId"`
	CustodianName  string `csv:"custodian_name" json:"custodianName"`
	ValidatorCount int    `csv:"validator_count" json:"validatorCount"`
	ClosingValue   string `csv:"closing_value" json:"closingValue"`
	PortfolioShare string `csv:"portfolio_share" json:"portfolioShare"`
	MonthRewards   string `csv:"month_rewards" json:"monthRewards"`
	AnnualizedApy  string `csv:"annualized_apy" json:"annualizedApy"`
}

type MonthlyStatement struct {
	Period StatementPeriod `json:"period"`
	Rows   []*StatementRow `json:"rows"`
	// OpeningValue is the portfolio value from the stored snapshot nearest
	// the period start; "0" when no snapshot history reaches back that far.
	OpeningValue string `json:"openingValue"`
	TotalValue   string `json:"totalValue"`
	TotalRewards string `json:"totalRewards"`
	PortfolioApy string `json:"portfolioApy"`
}

func formatFraction(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

// BuildMonthlyStatement produces per-custodian statement rows from the
// month's reward events and the validator set as of the period end. Yields
// are annualized over the statement month itself, not the trailing window.
func BuildMonthlyStatement(validators []*portfolio.Validator, events []*portfolio.RewardEvent, period StatementPeriod) *MonthlyStatement {
	allocations := portfolio.RollupByCustodian(validators, events, period.End)
	rollup := portfolio.RollupToPortfolio(allocations)

	custodianValidators := make(map[string]map[string]bool)
	for _, v := range validators {
		if v == nil || v.CustodianId == "" {
			continue
		}
		if custodianValidators[v.CustodianId] == nil {
			custodianValidators[v.CustodianId] = make(map[string]bool)
		}
		custodianValidators[v.CustodianId][v.ValidatorId] = true
	}

	totalRewards := new(big.Int)
	rows := make([]*StatementRow, 0, len(allocations))
	for _, allocation := range allocations {
		members := custodianValidators[allocation.CustodianId]

		custodianEvents := make([]*portfolio.RewardEvent, 0)
		for _, ev := range events {
			if ev == nil {
				continue
			}
			if members[ev.ValidatorId] {
				custodianEvents = append(custodianEvents, ev)
			}
		}

		monthRewards := portfolio.SumRewardsInWindow(custodianEvents, period.Start, period.End)
		totalRewards.Add(totalRewards, monthRewards)

		apy := portfolio.CalculateTrailingYield(custodianEvents, allocation.Value, period.Start, period.End)

		rows = append(rows, &StatementRow{
			CustodianId:    allocation.CustodianId,
			CustodianName:  allocation.CustodianName,
			ValidatorCount: allocation.ValidatorCount,
			ClosingValue:   numbers.BigToString(allocation.Value),
			PortfolioShare: formatFraction(allocation.Percentage),
			MonthRewards:   numbers.BigToString(monthRewards),
			AnnualizedApy:  formatFraction(apy),
		})
	}

	portfolioApy := portfolio.CalculateTrailingYield(events, rollup.TotalValue, period.Start, period.End)

	return &MonthlyStatement{
		Period:       period,
		Rows:         rows,
		OpeningValue: "0",
		TotalValue:   numbers.BigToString(rollup.TotalValue),
		TotalRewards: numbers.BigToString(totalRewards),
		PortfolioApy: formatFraction(portfolioApy),
	}
}
