package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/clearstake/stakewatch/internal/logger"
	"github.com/clearstake/stakewatch/internal/tests"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/postgres"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (string, *gorm.DB, *zap.Logger) {
	if !tests.DatabaseTestsEnabled() {
		t.Skip("database tests disabled; set STAKEWATCH_TEST_DATABASE_HOST to enable")
	}

	cfg := tests.GetConfig()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	assert.Nil(t, err)

	dbName, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	assert.Nil(t, err)

	return dbName, grm, l
}

func teardown(dbName string, grm *gorm.DB, l *zap.Logger) {
	cfg := tests.GetConfig()
	postgres.TeardownTestDatabase(dbName, cfg, grm, l)
}

func seedPortfolio(t *testing.T, grm *gorm.DB, now time.Time) {
	queries := []string{
		`insert into custodians (custodian_id, name) values ('cust-a', 'Custodian A'), ('cust-b', 'Custodian B')`,
		`insert into operators (operator_id, custodian_id, name) values ('op-1', 'cust-a', 'Operator One'), ('op-2', 'cust-b', 'Operator Two')`,
	}
	for _, query := range queries {
		assert.Nil(t, grm.Exec(query).Error)
	}

	res := grm.Exec(`
		insert into validators (validator_id, pubkey, operator_id, status, stake_state, balance, effective_balance, transit_start)
		values
			('v1', '0xaaa', 'op-1', 'active_ongoing', 'active', 32000000000, 32000000000, null),
			('v2', '0xbbb', 'op-1', 'active_ongoing', 'active', 32100000000, 32000000000, null),
			('v3', '0xccc', 'op-2', 'pending', 'deposited', 32000000000, 0, ?)
	`, now.Add(-9*24*time.Hour))
	assert.Nil(t, res.Error)

	res = grm.Exec(`
		insert into reward_events (validator_id, amount, event_time)
		values
			('v1', 1500, ?),
			('v2', 500, ?),
			('v1', 9000, ?)
	`, now.Add(-24*time.Hour), now.Add(-48*time.Hour), now.Add(-45*24*time.Hour))
	assert.Nil(t, res.Error)
}

func Test_PostgresPortfolioStore(t *testing.T) {
	dbName, grm, l := setup(t)
	defer teardown(dbName, grm, l)

	ctx := context.Background()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	seedPortfolio(t, grm, now)

	store := NewPostgresPortfolioStore(grm, l)

	t.Run("Test that validators come back with custodian context joined", func(t *testing.T) {
		validators, err := store.ListValidators(ctx)

		assert.Nil(t, err)
		assert.Len(t, validators, 3)
		assert.Equal(t, "v1", validators[0].ValidatorId)
		assert.Equal(t, "cust-a", validators[0].CustodianId)
		assert.Equal(t, "Custodian A", validators[0].CustodianName)
		assert.Equal(t, "Operator One", validators[0].OperatorName)
		assert.Equal(t, portfolio.State_Active, validators[0].StakeState)
		assert.Equal(t, "32000000000", validators[0].Balance.String())
	})

	t.Run("Test that reward events are window filtered", func(t *testing.T) {
		events, err := store.ListRewardEvents(ctx, now.Add(-portfolio.TrailingWindow), now)

		assert.Nil(t, err)
		assert.Len(t, events, 2)
		for _, ev := range events {
			assert.True(t, ev.Timestamp.After(now.Add(-portfolio.TrailingWindow)))
		}
	})

	t.Run("Test that transit validators carry their transit start", func(t *testing.T) {
		transit, err := store.ListTransitValidators(ctx)

		assert.Nil(t, err)
		assert.Len(t, transit, 1)
		assert.Equal(t, "v3", transit[0].ValidatorId)
		assert.Equal(t, portfolio.State_Deposited, transit[0].StakeState)
		assert.NotNil(t, transit[0].TransitStart)
	})

	t.Run("Test that daily reward points sum per day", func(t *testing.T) {
		points, err := store.ListDailyRewardPoints(ctx, 7, now)

		assert.Nil(t, err)
		assert.Len(t, points, 2)
		// oldest first
		assert.True(t, points[0].PeriodEnd.Before(points[1].PeriodEnd))
		assert.Equal(t, "500", points[0].Total.String())
		assert.Equal(t, "1500", points[1].Total.String())
	})

	t.Run("Test that portfolio snapshots round-trip newest first", func(t *testing.T) {
		older := &exceptions.PortfolioSnapshot{TotalValue: big.NewInt(100), ValidatorCount: 2, AsOf: now.Add(-24 * time.Hour)}
		newer := &exceptions.PortfolioSnapshot{TotalValue: big.NewInt(106), ValidatorCount: 3, AsOf: now}

		assert.Nil(t, store.InsertPortfolioSnapshot(ctx, older))
		assert.Nil(t, store.InsertPortfolioSnapshot(ctx, newer))

		snapshots, err := store.GetLatestPortfolioSnapshots(ctx, 2)
		assert.Nil(t, err)
		assert.Len(t, snapshots, 2)
		assert.Equal(t, "106", snapshots[0].TotalValue.String())
		assert.Equal(t, "100", snapshots[1].TotalValue.String())

		at, err := store.GetPortfolioSnapshotAtOrBefore(ctx, now.Add(-time.Hour))
		assert.Nil(t, err)
		assert.Equal(t, "100", at.TotalValue.String())

		_, err = store.GetPortfolioSnapshotAtOrBefore(ctx, now.Add(-48*time.Hour))
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("Test that a snapshot upserts on its as-of time", func(t *testing.T) {
		replacement := &exceptions.PortfolioSnapshot{TotalValue: big.NewInt(107), ValidatorCount: 3, AsOf: now}
		assert.Nil(t, store.InsertPortfolioSnapshot(ctx, replacement))

		snapshots, err := store.GetLatestPortfolioSnapshots(ctx, 1)
		assert.Nil(t, err)
		assert.Len(t, snapshots, 1)
		assert.Equal(t, "107", snapshots[0].TotalValue.String())
	})

	t.Run("Test that exceptions round-trip with evidence links", func(t *testing.T) {
		detected := exceptions.RunDetectors(&exceptions.DetectionState{
			Current:  &exceptions.PortfolioSnapshot{TotalValue: big.NewInt(106), ValidatorCount: 3},
			Previous: &exceptions.PortfolioSnapshot{TotalValue: big.NewInt(100), ValidatorCount: 3},
		}, nil, now)
		assert.Len(t, detected, 1)

		assert.Nil(t, store.InsertExceptions(ctx, detected))

		listed, err := store.ListExceptions(ctx, exceptions.Status_New)
		assert.Nil(t, err)
		assert.Len(t, listed, 1)
		assert.Equal(t, detected[0].Id, listed[0].Id)
		assert.Equal(t, exceptions.ExceptionType_PortfolioValueChange, listed[0].Type)

		fetched, err := store.GetException(ctx, detected[0].Id)
		assert.Nil(t, err)
		assert.Equal(t, detected[0].Title, fetched.Title)

		assert.Nil(t, exceptions.ApplyTransition(fetched, exceptions.Status_Resolved, &exceptions.TransitionOptions{
			Resolution: "Expected inflow",
			ResolvedBy: "ops@clearstake.io",
		}, now))
		assert.Nil(t, store.UpdateException(ctx, fetched))

		resolved, err := store.GetException(ctx, fetched.Id)
		assert.Nil(t, err)
		assert.Equal(t, exceptions.Status_Resolved, resolved.Status)
		assert.Equal(t, "Expected inflow", resolved.Resolution)
		assert.NotNil(t, resolved.ResolvedAt)

		open, err := store.ListExceptions(ctx, exceptions.Status_New)
		assert.Nil(t, err)
		assert.Empty(t, open)
	})

	t.Run("Test that unknown exception ids surface ErrNotFound", func(t *testing.T) {
		_, err := store.GetException(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		err = store.UpdateException(ctx, &exceptions.Exception{Id: "does-not-exist"})
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
