package storage

import (
	"context"
	"time"

	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("record not found")

// PortfolioStore is the query layer the rollup and detection engines sit on.
// Implementations must return each read as an internally consistent snapshot;
// the engines themselves never touch the database.
type PortfolioStore interface {
	// ListValidators returns every validator with custodian/operator
	// context joined in.
	ListValidators(ctx context.Context) ([]*portfolio.Validator, error)

	// ListRewardEvents returns reward events with timestamps in
	// [windowStart, windowEnd].
	ListRewardEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*portfolio.RewardEvent, error)

	// ListTransitValidators returns validators currently in a transit-like
	// lifecycle state along with their transit-start times.
	ListTransitValidators(ctx context.Context) ([]*exceptions.TransitValidator, error)

	// ListDailyRewardPoints returns per-day reward sums for the given
	// number of days ending at asOf, oldest first.
	ListDailyRewardPoints(ctx context.Context, days int, asOf time.Time) ([]*exceptions.RewardPoint, error)

	InsertPortfolioSnapshot(ctx context.Context, snapshot *exceptions.PortfolioSnapshot) error

	// GetLatestPortfolioSnapshots returns up to limit snapshots, newest
	// first.
	GetLatestPortfolioSnapshots(ctx context.Context, limit int) ([]*exceptions.PortfolioSnapshot, error)

	// GetPortfolioSnapshotAtOrBefore returns the newest snapshot taken at
	// or before asOf, or ErrNotFound.
	GetPortfolioSnapshotAtOrBefore(ctx context.Context, asOf time.Time) (*exceptions.PortfolioSnapshot, error)

	InsertExceptions(ctx context.Context, excs []*exceptions.Exception) error
	ListExceptions(ctx context.Context, status exceptions.Status) ([]*exceptions.Exception, error)
	GetException(ctx context.Context, id string) (*exceptions.Exception, error)
	UpdateException(ctx context.Context, ex *exceptions.Exception) error
}
