package migrations

import (
	"database/sql"
	"fmt"
	"time"

	_202506021134_bootstrapPortfolio "github.com/clearstake/stakewatch/pkg/postgres/migrations/202506021134_bootstrapPortfolio"
	_202506021201_rewardEvents "github.com/clearstake/stakewatch/pkg/postgres/migrations/202506021201_rewardEvents"
	_202506030917_portfolioSnapshots "github.com/clearstake/stakewatch/pkg/postgres/migrations/202506030917_portfolioSnapshots"
	_202506101422_exceptions "github.com/clearstake/stakewatch/pkg/postgres/migrations/202506101422_exceptions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB) error
	GetName() string
}

type Migrator struct {
	Db     *sql.DB
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger) *Migrator {
	_ = gDb.AutoMigrate(&Migrations{})
	return &Migrator{
		Db:     db,
		GDb:    gDb,
		Logger: l,
	}
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202506021134_bootstrapPortfolio.Migration{},
		&_202506021201_rewardEvents.Migration{},
		&_202506030917_portfolioSnapshots.Migration{},
		&_202506101422_exceptions.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	if result.Error == nil && result.RowsAffected == 0 {
		m.Logger.Sugar().Infof("Running migration '%s'", name)
		if err := migration.Up(m.Db, m.GDb); err != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
			return err
		}

		migrationRecord = Migrations{
			Name: name,
		}
		result = m.GDb.Create(&migrationRecord)
		if result.Error != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
			return result.Error
		}
	} else if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	} else if result.RowsAffected > 0 {
		m.Logger.Sugar().Infof("Migration %s already run", name)
		return nil
	}
	return nil
}

type Migrations struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"default:current_timestamp;type:timestamp with time zone"`
	UpdatedAt time.Time `gorm:"default:null;type:timestamp with time zone"`
}
