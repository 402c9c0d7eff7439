package _202506101422_exceptions

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists exceptions (
			id varchar not null primary key,
			exception_type varchar not null,
			status varchar not null default 'new',
			title varchar not null,
			description text not null,
			severity varchar not null,
			evidence_links jsonb not null default '[]',
			detected_at timestamp(6) not null,
			resolved_at timestamp(6),
			resolved_by varchar,
			resolution text,
			created_at timestamp(6) not null default now(),
			updated_at timestamp(6) not null default now()
		);`,
		`create index if not exists idx_exceptions_status on exceptions (status);`,
		`create index if not exists idx_exceptions_type on exceptions (exception_type);`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506101422_exceptions"
}
