package exceptionsDataService

import (
	"context"
	"fmt"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

const rewardHistoryDays = 14

// ExceptionsDataService assembles detection state from the store, runs the
// detectors and manages the exception lifecycle.
type ExceptionsDataService struct {
	store        storage.PortfolioStore
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewExceptionsDataService(
	store storage.PortfolioStore,
	logger *zap.Logger,
	globalConfig *config.Config,
) *ExceptionsDataService {
	return &ExceptionsDataService{
		store:        store,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

func (eds *ExceptionsDataService) detectorConfig() *exceptions.DetectorConfig {
	dc := eds.globalConfig.DetectorConfig
	return &exceptions.DetectorConfig{
		PortfolioValueChangeThreshold:  dc.PortfolioValueChangeThreshold,
		ValidatorCountChangeThreshold:  dc.ValidatorCountChangeThreshold,
		InTransitStuckThresholdDays:    dc.InTransitStuckThresholdDays,
		RewardsAnomalyThreshold:        dc.RewardsAnomalyThreshold,
		PerformanceDivergenceThreshold: dc.PerformanceDivergenceThreshold,
	}
}

// BuildDetectionState reads every detector signal from the store as of asOf.
func (eds *ExceptionsDataService) BuildDetectionState(ctx context.Context, asOf time.Time) (*exceptions.DetectionState, error) {
	state := &exceptions.DetectionState{}

	snapshots, err := eds.store.GetLatestPortfolioSnapshots(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(snapshots) > 0 {
		state.Current = snapshots[0]
	}
	if len(snapshots) > 1 {
		state.Previous = snapshots[1]
	}

	state.TransitValidators, err = eds.store.ListTransitValidators(ctx)
	if err != nil {
		return nil, err
	}

	state.RewardHistory, err = eds.store.ListDailyRewardPoints(ctx, rewardHistoryDays, asOf)
	if err != nil {
		return nil, err
	}

	validators, err := eds.store.ListValidators(ctx)
	if err != nil {
		return nil, err
	}
	events, err := eds.store.ListRewardEvents(ctx, asOf.Add(-portfolio.TrailingWindow), asOf)
	if err != nil {
		return nil, err
	}
	for _, allocation := range portfolio.RollupByCustodian(validators, events, asOf) {
		state.CustodianPerformance = append(state.CustodianPerformance, &exceptions.CustodianPerformance{
			CustodianId:    allocation.CustodianId,
			CustodianName:  allocation.CustodianName,
			TrailingApy30d: allocation.TrailingApy30d,
		})
	}

	return state, nil
}

// subjectKey identifies what an exception is about, so a rerun of the scan
// does not file a duplicate while a matching exception is still open.
func subjectKey(ex *exceptions.Exception) string {
	subject := ""
	if len(ex.EvidenceLinks) > 0 {
		subject = ex.EvidenceLinks[0].Type + ":" + ex.EvidenceLinks[0].Id
	}
	return fmt.Sprintf("%s|%s", ex.Type, subject)
}

// Scan runs every detector against the current detection state and persists
// the exceptions that are not already open for the same subject.
func (eds *ExceptionsDataService) Scan(ctx context.Context, asOf time.Time) ([]*exceptions.Exception, error) {
	state, err := eds.BuildDetectionState(ctx, asOf)
	if err != nil {
		return nil, err
	}

	found := exceptions.RunDetectors(state, eds.detectorConfig(), asOf)
	if len(found) == 0 {
		return []*exceptions.Exception{}, nil
	}

	open := make(map[string]bool)
	for _, status := range []exceptions.Status{exceptions.Status_New, exceptions.Status_Investigating} {
		existing, err := eds.store.ListExceptions(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, ex := range existing {
			open[subjectKey(ex)] = true
		}
	}

	fresh := make([]*exceptions.Exception, 0, len(found))
	for _, ex := range found {
		if open[subjectKey(ex)] {
			continue
		}
		fresh = append(fresh, ex)
	}
	if len(fresh) == 0 {
		return []*exceptions.Exception{}, nil
	}

	if err := eds.store.InsertExceptions(ctx, fresh); err != nil {
		return nil, err
	}

	eds.logger.Sugar().Infow("Detected exceptions", "count", len(fresh))
	return fresh, nil
}

func (eds *ExceptionsDataService) ListExceptions(ctx context.Context, status exceptions.Status) ([]*exceptions.Exception, error) {
	return eds.store.ListExceptions(ctx, status)
}

func (eds *ExceptionsDataService) GetException(ctx context.Context, id string) (*exceptions.Exception, error) {
	return eds.store.GetException(ctx, id)
}

// Transition applies a status transition and persists the result. The
// transition validity check itself lives in the exceptions package;
// exceptions.ErrInvalidTransition surfaces unchanged to the caller.
func (eds *ExceptionsDataService) Transition(
	ctx context.Context,
	id string,
	target exceptions.Status,
	opts *exceptions.TransitionOptions,
	now time.Time,
) (*exceptions.Exception, error) {
	ex, err := eds.store.GetException(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := exceptions.ApplyTransition(ex, target, opts, now); err != nil {
		return nil, err
	}

	if err := eds.store.UpdateException(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}
