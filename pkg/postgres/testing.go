package postgres

import (
	"database/sql"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/tests"
	"github.com/clearstake/stakewatch/pkg/postgres/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetTestPostgresDatabase creates a uniquely named throwaway database, runs
// all migrations against it and returns the connections. Callers drop it via
// TeardownTestDatabase.
func GetTestPostgresDatabase(cfg config.DatabaseConfig, l *zap.Logger) (
	string,
	*sql.DB,
	*gorm.DB,
	error,
) {
	testDbName, err := tests.GenerateTestDbName()
	if err != nil {
		return testDbName, nil, nil, err
	}
	cfg.DbName = testDbName

	pgConfig := PostgresConfigFromDbConfig(&cfg)
	pgConfig.CreateDbIfNotExists = true

	pg, err := NewPostgres(pgConfig)
	if err != nil {
		return testDbName, nil, nil, err
	}

	grm, err := NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return testDbName, nil, nil, err
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	if err = migrator.MigrateAll(); err != nil {
		return testDbName, nil, nil, err
	}

	return testDbName, pg.Db, grm, nil
}
