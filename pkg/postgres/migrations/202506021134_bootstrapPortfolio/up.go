package _202506021134_bootstrapPortfolio

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists custodians (
			custodian_id varchar not null primary key,
			name varchar not null,
			created_at timestamp(6) not null default now()
		);`,
		`create table if not exists operators (
			operator_id varchar not null primary key,
			custodian_id varchar not null references custodians(custodian_id),
			name varchar not null,
			created_at timestamp(6) not null default now()
		);`,
		`create table if not exists validators (
			validator_id varchar not null primary key,
			pubkey varchar not null unique,
			operator_id varchar not null references operators(operator_id),
			status varchar not null,
			stake_state varchar not null,
			balance numeric(78) not null default 0,
			effective_balance numeric(78) not null default 0,
			transit_start timestamp(6),
			created_at timestamp(6) not null default now(),
			updated_at timestamp(6) not null default now()
		);`,
		`create index if not exists idx_validators_stake_state on validators (stake_state);`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506021134_bootstrapPortfolio"
}
