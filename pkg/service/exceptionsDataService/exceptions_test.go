package exceptionsDataService

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeStore is an in-memory PortfolioStore seeded per test.
type fakeStore struct {
	validators        []*portfolio.Validator
	rewardEvents      []*portfolio.RewardEvent
	transitValidators []*exceptions.TransitValidator
	rewardPoints      []*exceptions.RewardPoint
	snapshots         []*exceptions.PortfolioSnapshot
	exceptions        map[string]*exceptions.Exception
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exceptions: make(map[string]*exceptions.Exception),
	}
}

func (f *fakeStore) ListValidators(ctx context.Context) ([]*portfolio.Validator, error) {
	return f.validators, nil
}

func (f *fakeStore) ListRewardEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*portfolio.RewardEvent, error) {
	matched := make([]*portfolio.RewardEvent, 0)
	for _, ev := range f.rewardEvents {
		if ev.Timestamp.Before(windowStart) || ev.Timestamp.After(windowEnd) {
			continue
		}
		matched = append(matched, ev)
	}
	return matched, nil
}

func (f *fakeStore) ListTransitValidators(ctx context.Context) ([]*exceptions.TransitValidator, error) {
	return f.transitValidators, nil
}

func (f *fakeStore) ListDailyRewardPoints(ctx context.Context, days int, asOf time.Time) ([]*exceptions.RewardPoint, error) {
	return f.rewardPoints, nil
}

func (f *fakeStore) InsertPortfolioSnapshot(ctx context.Context, snapshot *exceptions.PortfolioSnapshot) error {
	f.snapshots = append([]*exceptions.PortfolioSnapshot{snapshot}, f.snapshots...)
	return nil
}

func (f *fakeStore) GetLatestPortfolioSnapshots(ctx context.Context, limit int) ([]*exceptions.PortfolioSnapshot, error) {
	if len(f.snapshots) > limit {
		return f.snapshots[:limit], nil
	}
	return f.snapshots, nil
}

func (f *fakeStore) GetPortfolioSnapshotAtOrBefore(ctx context.Context, asOf time.Time) (*exceptions.PortfolioSnapshot, error) {
	for _, s := range f.snapshots {
		if !s.AsOf.After(asOf) {
			return s, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) InsertExceptions(ctx context.Context, excs []*exceptions.Exception) error {
	for _, ex := range excs {
		f.exceptions[ex.Id] = ex
	}
	return nil
}

func (f *fakeStore) ListExceptions(ctx context.Context, status exceptions.Status) ([]*exceptions.Exception, error) {
	matched := make([]*exceptions.Exception, 0)
	for _, ex := range f.exceptions {
		if status == "" || ex.Status == status {
			matched = append(matched, ex)
		}
	}
	return matched, nil
}

func (f *fakeStore) GetException(ctx context.Context, id string) (*exceptions.Exception, error) {
	ex, ok := f.exceptions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ex, nil
}

func (f *fakeStore) UpdateException(ctx context.Context, ex *exceptions.Exception) error {
	if _, ok := f.exceptions[ex.Id]; !ok {
		return storage.ErrNotFound
	}
	f.exceptions[ex.Id] = ex
	return nil
}

func newTestService(store storage.PortfolioStore) *ExceptionsDataService {
	return NewExceptionsDataService(store, zap.NewNop(), &config.Config{})
}

func Test_Scan(t *testing.T) {
	asOf := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("Test that a portfolio value jump is persisted as an exception", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots = []*exceptions.PortfolioSnapshot{
			{TotalValue: big.NewInt(106_000_000_000), ValidatorCount: 3, AsOf: asOf},
			{TotalValue: big.NewInt(100_000_000_000), ValidatorCount: 3, AsOf: asOf.Add(-24 * time.Hour)},
		}

		svc := newTestService(store)

		found, err := svc.Scan(ctx, asOf)

		assert.Nil(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, exceptions.ExceptionType_PortfolioValueChange, found[0].Type)
		assert.Len(t, store.exceptions, 1)
	})

	t.Run("Test that a rerun does not duplicate an open exception", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots = []*exceptions.PortfolioSnapshot{
			{TotalValue: big.NewInt(106_000_000_000), ValidatorCount: 3, AsOf: asOf},
			{TotalValue: big.NewInt(100_000_000_000), ValidatorCount: 3, AsOf: asOf.Add(-24 * time.Hour)},
		}

		svc := newTestService(store)

		first, err := svc.Scan(ctx, asOf)
		assert.Nil(t, err)
		assert.Len(t, first, 1)

		second, err := svc.Scan(ctx, asOf.Add(time.Hour))
		assert.Nil(t, err)
		assert.Empty(t, second)
		assert.Len(t, store.exceptions, 1)
	})

	t.Run("Test that a resolved exception does not block redetection", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots = []*exceptions.PortfolioSnapshot{
			{TotalValue: big.NewInt(106_000_000_000), ValidatorCount: 3, AsOf: asOf},
			{TotalValue: big.NewInt(100_000_000_000), ValidatorCount: 3, AsOf: asOf.Add(-24 * time.Hour)},
		}

		svc := newTestService(store)

		first, err := svc.Scan(ctx, asOf)
		assert.Nil(t, err)
		assert.Len(t, first, 1)

		_, err = svc.Transition(ctx, first[0].Id, exceptions.Status_Resolved, nil, asOf)
		assert.Nil(t, err)

		second, err := svc.Scan(ctx, asOf.Add(time.Hour))
		assert.Nil(t, err)
		assert.Len(t, second, 1)
		assert.Len(t, store.exceptions, 2)
	})

	t.Run("Test that a quiet portfolio produces no exceptions", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots = []*exceptions.PortfolioSnapshot{
			{TotalValue: big.NewInt(100_000_000_000), ValidatorCount: 3, AsOf: asOf},
			{TotalValue: big.NewInt(100_500_000_000), ValidatorCount: 3, AsOf: asOf.Add(-24 * time.Hour)},
		}

		svc := newTestService(store)

		found, err := svc.Scan(ctx, asOf)

		assert.Nil(t, err)
		assert.Empty(t, found)
	})

	t.Run("Test that custodian performance feeds the divergence detector", func(t *testing.T) {
		store := newFakeStore()
		store.validators = []*portfolio.Validator{
			{ValidatorId: "v1", CustodianId: "cust-a", CustodianName: "Custodian A", StakeState: portfolio.State_Active, Balance: big.NewInt(1_000_000)},
			{ValidatorId: "v2", CustodianId: "cust-b", CustodianName: "Custodian B", StakeState: portfolio.State_Active, Balance: big.NewInt(1_000_000)},
		}
		store.rewardEvents = []*portfolio.RewardEvent{
			{ValidatorId: "v1", Amount: big.NewInt(300), Timestamp: asOf.Add(-time.Hour)},
			{ValidatorId: "v2", Amount: big.NewInt(700), Timestamp: asOf.Add(-time.Hour)},
		}

		svc := newTestService(store)

		found, err := svc.Scan(ctx, asOf)

		assert.Nil(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, exceptions.ExceptionType_PerformanceDivergence, found[0].Type)
		assert.Equal(t, "cust-a", found[0].EvidenceLinks[0].Id)
	})
}

func Test_Transition(t *testing.T) {
	asOf := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	seed := func(store *fakeStore, status exceptions.Status) *exceptions.Exception {
		ex := &exceptions.Exception{
			Id:     "ex-1",
			Type:   exceptions.ExceptionType_RewardsAnomaly,
			Status: status,
		}
		store.exceptions[ex.Id] = ex
		return ex
	}

	t.Run("Test that a valid transition persists", func(t *testing.T) {
		store := newFakeStore()
		seed(store, exceptions.Status_New)

		svc := newTestService(store)

		updated, err := svc.Transition(ctx, "ex-1", exceptions.Status_Investigating, nil, asOf)

		assert.Nil(t, err)
		assert.Equal(t, exceptions.Status_Investigating, updated.Status)
		assert.Equal(t, exceptions.Status_Investigating, store.exceptions["ex-1"].Status)
	})

	t.Run("Test that an invalid transition surfaces ErrInvalidTransition", func(t *testing.T) {
		store := newFakeStore()
		seed(store, exceptions.Status_Resolved)

		svc := newTestService(store)

		_, err := svc.Transition(ctx, "ex-1", exceptions.Status_Investigating, nil, asOf)

		assert.True(t, errors.Is(err, exceptions.ErrInvalidTransition))
	})

	t.Run("Test that an unknown id surfaces ErrNotFound", func(t *testing.T) {
		store := newFakeStore()

		svc := newTestService(store)

		_, err := svc.Transition(ctx, "missing", exceptions.Status_Resolved, nil, asOf)

		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
