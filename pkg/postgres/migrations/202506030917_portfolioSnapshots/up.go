package _202506030917_portfolioSnapshots

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `
		create table if not exists portfolio_snapshots (
			id bigserial primary key,
			total_value numeric(78) not null,
			validator_count integer not null,
			as_of timestamp(6) not null unique,
			created_at timestamp(6) not null default now()
		);
	`
	if err := grm.Exec(query).Error; err != nil {
		return err
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506030917_portfolioSnapshots"
}
