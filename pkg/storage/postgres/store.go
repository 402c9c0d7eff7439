package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/clearstake/stakewatch/pkg/types/numbers"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresPortfolioStore implements storage.PortfolioStore on top of the
// stakewatch schema.
type PostgresPortfolioStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresPortfolioStore(db *gorm.DB, l *zap.Logger) *PostgresPortfolioStore {
	return &PostgresPortfolioStore{
		db:     db,
		logger: l,
	}
}

type validatorRow struct {
	ValidatorId      string
	Pubkey           string
	OperatorId       string
	OperatorName     string
	CustodianId      string
	CustodianName    string
	Status           string
	StakeState       string
	Balance          string
	EffectiveBalance string
}

const listValidatorsQuery = `
	select
		v.validator_id,
		v.pubkey,
		v.operator_id,
		o.name as operator_name,
		o.custodian_id,
		c.name as custodian_name,
		v.status,
		v.stake_state,
		v.balance,
		v.effective_balance
	from validators as v
	left join operators as o on (o.operator_id = v.operator_id)
	left join custodians as c on (c.custodian_id = o.custodian_id)
	order by v.validator_id asc
`

func (s *PostgresPortfolioStore) ListValidators(ctx context.Context) ([]*portfolio.Validator, error) {
	rows := make([]*validatorRow, 0)
	res := s.db.WithContext(ctx).Raw(listValidatorsQuery).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list validators", "error", res.Error)
		return nil, res.Error
	}

	validators := make([]*portfolio.Validator, 0, len(rows))
	for _, row := range rows {
		balance, err := numbers.ParseBig(row.Balance)
		if err != nil {
			return nil, errors.Wrapf(err, "validator %s balance", row.ValidatorId)
		}
		effectiveBalance, err := numbers.ParseBig(row.EffectiveBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "validator %s effective balance", row.ValidatorId)
		}
		validators = append(validators, &portfolio.Validator{
			ValidatorId:      row.ValidatorId,
			Pubkey:           row.Pubkey,
			OperatorId:       row.OperatorId,
			OperatorName:     row.OperatorName,
			CustodianId:      row.CustodianId,
			CustodianName:    row.CustodianName,
			Status:           row.Status,
			StakeState:       portfolio.LifecycleState(row.StakeState),
			Balance:          balance,
			EffectiveBalance: effectiveBalance,
		})
	}
	return validators, nil
}

type rewardEventRow struct {
	ValidatorId string
	Amount      string
	EventTime   time.Time
}

func (s *PostgresPortfolioStore) ListRewardEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*portfolio.RewardEvent, error) {
	query := `
		select
			validator_id,
			amount,
			event_time
		from reward_events
		where event_time >= @windowStart
			and event_time <= @windowEnd
		order by event_time asc
	`
	rows := make([]*rewardEventRow, 0)
	res := s.db.WithContext(ctx).Raw(query,
		sql.Named("windowStart", windowStart),
		sql.Named("windowEnd", windowEnd),
	).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list reward events", "error", res.Error)
		return nil, res.Error
	}

	events := make([]*portfolio.RewardEvent, 0, len(rows))
	for _, row := range rows {
		amount, err := numbers.ParseBig(row.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "reward event for validator %s", row.ValidatorId)
		}
		events = append(events, &portfolio.RewardEvent{
			ValidatorId: row.ValidatorId,
			Amount:      amount,
			Timestamp:   row.EventTime,
		})
	}
	return events, nil
}

type transitValidatorRow struct {
	ValidatorId   string
	Pubkey        string
	StakeState    string
	CustodianId   string
	CustodianName string
	TransitStart  *time.Time
}

func (s *PostgresPortfolioStore) ListTransitValidators(ctx context.Context) ([]*exceptions.TransitValidator, error) {
	query := `
		select
			v.validator_id,
			v.pubkey,
			v.stake_state,
			o.custodian_id,
			c.name as custodian_name,
			v.transit_start
		from validators as v
		left join operators as o on (o.operator_id = v.operator_id)
		left join custodians as c on (c.custodian_id = o.custodian_id)
		where v.stake_state in ('deposited', 'pending_activation')
		order by v.validator_id asc
	`
	rows := make([]*transitValidatorRow, 0)
	res := s.db.WithContext(ctx).Raw(query).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list transit validators", "error", res.Error)
		return nil, res.Error
	}

	validators := make([]*exceptions.TransitValidator, 0, len(rows))
	for _, row := range rows {
		validators = append(validators, &exceptions.TransitValidator{
			ValidatorId:   row.ValidatorId,
			Pubkey:        row.Pubkey,
			StakeState:    portfolio.LifecycleState(row.StakeState),
			CustodianId:   row.CustodianId,
			CustodianName: row.CustodianName,
			TransitStart:  row.TransitStart,
		})
	}
	return validators, nil
}

type rewardPointRow struct {
	PeriodEnd time.Time
	Total     string
}

func (s *PostgresPortfolioStore) ListDailyRewardPoints(ctx context.Context, days int, asOf time.Time) ([]*exceptions.RewardPoint, error) {
	query := `
		select
			(date_trunc('day', event_time) + interval '1 day') as period_end,
			sum(amount) as total
		from reward_events
		where event_time > @windowStart
			and event_time <= @asOf
		group by 1
		order by 1 asc
	`
	windowStart := asOf.AddDate(0, 0, -days)
	rows := make([]*rewardPointRow, 0)
	res := s.db.WithContext(ctx).Raw(query,
		sql.Named("windowStart", windowStart),
		sql.Named("asOf", asOf),
	).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list daily reward points", "error", res.Error)
		return nil, res.Error
	}

	points := make([]*exceptions.RewardPoint, 0, len(rows))
	for _, row := range rows {
		total, err := numbers.ParseBig(row.Total)
		if err != nil {
			return nil, errors.Wrap(err, "daily reward point")
		}
		points = append(points, &exceptions.RewardPoint{
			PeriodEnd: row.PeriodEnd,
			Total:     total,
		})
	}
	return points, nil
}

func (s *PostgresPortfolioStore) InsertPortfolioSnapshot(ctx context.Context, snapshot *exceptions.PortfolioSnapshot) error {
	query := `
		insert into portfolio_snapshots (total_value, validator_count, as_of)
		values (@totalValue, @validatorCount, @asOf)
		on conflict (as_of) do update set
			total_value = excluded.total_value,
			validator_count = excluded.validator_count
	`
	res := s.db.WithContext(ctx).Exec(query,
		sql.Named("totalValue", numbers.BigToString(snapshot.TotalValue)),
		sql.Named("validatorCount", snapshot.ValidatorCount),
		sql.Named("asOf", snapshot.AsOf),
	)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to insert portfolio snapshot", "error", res.Error)
		return res.Error
	}
	return nil
}

type snapshotRow struct {
	TotalValue     string
	ValidatorCount int
	AsOf           time.Time
}

func (r *snapshotRow) toSnapshot() (*exceptions.PortfolioSnapshot, error) {
	totalValue, err := numbers.ParseBig(r.TotalValue)
	if err != nil {
		return nil, errors.Wrap(err, "portfolio snapshot total value")
	}
	return &exceptions.PortfolioSnapshot{
		TotalValue:     totalValue,
		ValidatorCount: r.ValidatorCount,
		AsOf:           r.AsOf,
	}, nil
}

func (s *PostgresPortfolioStore) GetLatestPortfolioSnapshots(ctx context.Context, limit int) ([]*exceptions.PortfolioSnapshot, error) {
	query := `
		select
			total_value,
			validator_count,
			as_of
		from portfolio_snapshots
		order by as_of desc
		limit @limit
	`
	rows := make([]*snapshotRow, 0)
	res := s.db.WithContext(ctx).Raw(query, sql.Named("limit", limit)).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list portfolio snapshots", "error", res.Error)
		return nil, res.Error
	}

	snapshots := make([]*exceptions.PortfolioSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := row.toSnapshot()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (s *PostgresPortfolioStore) GetPortfolioSnapshotAtOrBefore(ctx context.Context, asOf time.Time) (*exceptions.PortfolioSnapshot, error) {
	query := `
		select
			total_value,
			validator_count,
			as_of
		from portfolio_snapshots
		where as_of <= @asOf
		order by as_of desc
		limit 1
	`
	rows := make([]*snapshotRow, 0)
	res := s.db.WithContext(ctx).Raw(query, sql.Named("asOf", asOf)).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to get portfolio snapshot", "error", res.Error)
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0].toSnapshot()
}

type exceptionRow struct {
	Id            string
	ExceptionType string
	Status        string
	Title         string
	Description   string
	Severity      string
	EvidenceLinks []byte
	DetectedAt    time.Time
	ResolvedAt    *time.Time
	ResolvedBy    *string
	Resolution    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *exceptionRow) toException() (*exceptions.Exception, error) {
	links := make([]exceptions.EvidenceLink, 0)
	if len(r.EvidenceLinks) > 0 {
		if err := json.Unmarshal(r.EvidenceLinks, &links); err != nil {
			return nil, errors.Wrapf(err, "exception %s evidence links", r.Id)
		}
	}
	ex := &exceptions.Exception{
		Id:            r.Id,
		Type:          exceptions.ExceptionType(r.ExceptionType),
		Status:        exceptions.Status(r.Status),
		Title:         r.Title,
		Description:   r.Description,
		Severity:      exceptions.Severity(r.Severity),
		EvidenceLinks: links,
		DetectedAt:    r.DetectedAt,
		ResolvedAt:    r.ResolvedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ResolvedBy != nil {
		ex.ResolvedBy = *r.ResolvedBy
	}
	if r.Resolution != nil {
		ex.Resolution = *r.Resolution
	}
	return ex, nil
}

const exceptionColumns = `
	id,
	exception_type,
	status,
	title,
	description,
	severity,
	evidence_links,
	detected_at,
	resolved_at,
	resolved_by,
	resolution,
	created_at,
	updated_at
`

func (s *PostgresPortfolioStore) InsertExceptions(ctx context.Context, excs []*exceptions.Exception) error {
	query := `
		insert into exceptions (
			id, exception_type, status, title, description, severity,
			evidence_links, detected_at, created_at, updated_at
		) values (
			@id, @exceptionType, @status, @title, @description, @severity,
			@evidenceLinks, @detectedAt, @createdAt, @updatedAt
		)
	`
	for _, ex := range excs {
		links, err := json.Marshal(ex.EvidenceLinks)
		if err != nil {
			return errors.Wrapf(err, "exception %s evidence links", ex.Id)
		}
		res := s.db.WithContext(ctx).Exec(query,
			sql.Named("id", ex.Id),
			sql.Named("exceptionType", string(ex.Type)),
			sql.Named("status", string(ex.Status)),
			sql.Named("title", ex.Title),
			sql.Named("description", ex.Description),
			sql.Named("severity", string(ex.Severity)),
			sql.Named("evidenceLinks", string(links)),
			sql.Named("detectedAt", ex.DetectedAt),
			sql.Named("createdAt", ex.CreatedAt),
			sql.Named("updatedAt", ex.UpdatedAt),
		)
		if res.Error != nil {
			s.logger.Sugar().Errorw("Failed to insert exception", "error", res.Error, "id", ex.Id)
			return res.Error
		}
	}
	return nil
}

func (s *PostgresPortfolioStore) ListExceptions(ctx context.Context, status exceptions.Status) ([]*exceptions.Exception, error) {
	query := `select ` + exceptionColumns + ` from exceptions`
	args := make([]interface{}, 0)
	if status != "" {
		query += ` where status = @status`
		args = append(args, sql.Named("status", string(status)))
	}
	query += ` order by detected_at desc, id asc`

	rows := make([]*exceptionRow, 0)
	res := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to list exceptions", "error", res.Error)
		return nil, res.Error
	}

	excs := make([]*exceptions.Exception, 0, len(rows))
	for _, row := range rows {
		ex, err := row.toException()
		if err != nil {
			return nil, err
		}
		excs = append(excs, ex)
	}
	return excs, nil
}

func (s *PostgresPortfolioStore) GetException(ctx context.Context, id string) (*exceptions.Exception, error) {
	query := `select ` + exceptionColumns + ` from exceptions where id = @id`

	rows := make([]*exceptionRow, 0)
	res := s.db.WithContext(ctx).Raw(query, sql.Named("id", id)).Scan(&rows)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to get exception", "error", res.Error, "id", id)
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0].toException()
}

func (s *PostgresPortfolioStore) UpdateException(ctx context.Context, ex *exceptions.Exception) error {
	query := `
		update exceptions set
			status = @status,
			resolved_at = @resolvedAt,
			resolved_by = @resolvedBy,
			resolution = @resolution,
			updated_at = @updatedAt
		where id = @id
	`
	res := s.db.WithContext(ctx).Exec(query,
		sql.Named("status", string(ex.Status)),
		sql.Named("resolvedAt", ex.ResolvedAt),
		sql.Named("resolvedBy", ex.ResolvedBy),
		sql.Named("resolution", ex.Resolution),
		sql.Named("updatedAt", ex.UpdatedAt),
		sql.Named("id", ex.Id),
	)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to update exception", "error", res.Error, "id", ex.Id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
