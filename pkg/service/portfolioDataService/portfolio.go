package portfolioDataService

import (
	"context"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/reports"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PortfolioDataService loads one consistent snapshot of validators and
// reward events from the store and runs the rollup engine over it. All
// entry points take an explicit asOf so a request sees a single "now".
type PortfolioDataService struct {
	store        storage.PortfolioStore
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewPortfolioDataService(
	store storage.PortfolioStore,
	logger *zap.Logger,
	globalConfig *config.Config,
) *PortfolioDataService {
	return &PortfolioDataService{
		store:        store,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

func (pds *PortfolioDataService) summaryOptions() *portfolio.SummaryOptions {
	return &portfolio.SummaryOptions{
		NetworkBenchmarkApy: pds.globalConfig.PortfolioConfig.NetworkBenchmarkApy,
	}
}

// GetPortfolioSummary builds the dashboard summary as observed at asOf. The
// reward-event read covers the trailing 60 days so the previous-month APY is
// computable from the same snapshot.
func (pds *PortfolioDataService) GetPortfolioSummary(ctx context.Context, asOf time.Time) (*portfolio.PortfolioSummary, error) {
	validators, err := pds.store.ListValidators(ctx)
	if err != nil {
		return nil, err
	}
	events, err := pds.store.ListRewardEvents(ctx, asOf.Add(-2*portfolio.TrailingWindow), asOf)
	if err != nil {
		return nil, err
	}

	return portfolio.BuildPortfolioSummary(validators, events, asOf, pds.summaryOptions()), nil
}

// RecordPortfolioSnapshot persists a portfolio observation at asOf. The
// change detectors compare consecutive stored snapshots.
func (pds *PortfolioDataService) RecordPortfolioSnapshot(ctx context.Context, asOf time.Time) (*exceptions.PortfolioSnapshot, error) {
	summary, err := pds.GetPortfolioSummary(ctx, asOf)
	if err != nil {
		return nil, err
	}

	snapshot := &exceptions.PortfolioSnapshot{
		TotalValue:     summary.TotalValue,
		ValidatorCount: summary.ValidatorCount,
		AsOf:           asOf,
	}
	if err := pds.store.InsertPortfolioSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	pds.logger.Sugar().Infow("Recorded portfolio snapshot",
		"totalValue", snapshot.TotalValue.String(),
		"validatorCount", snapshot.ValidatorCount,
		"asOf", asOf,
	)
	return snapshot, nil
}

// GetMonthlyStatement assembles the statement for the calendar month
// containing asOf's month string (format "2006-01").
func (pds *PortfolioDataService) GetMonthlyStatement(ctx context.Context, month string) (*reports.MonthlyStatement, error) {
	period, err := reports.ParseStatementMonth(month)
	if err != nil {
		return nil, err
	}

	validators, err := pds.store.ListValidators(ctx)
	if err != nil {
		return nil, err
	}
	events, err := pds.store.ListRewardEvents(ctx, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	statement := reports.BuildMonthlyStatement(validators, events, period)

	opening, err := pds.store.GetPortfolioSnapshotAtOrBefore(ctx, period.Start)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if opening != nil {
		statement.OpeningValue = opening.TotalValue.String()
	}

	return statement, nil
}
