package _202506021201_rewardEvents

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `
		create table if not exists reward_events (
			id bigserial primary key,
			validator_id varchar not null references validators(validator_id),
			amount numeric(78) not null,
			event_time timestamp(6) not null,
			created_at timestamp(6) not null default now()
		);
	`
	if err := grm.Exec(query).Error; err != nil {
		return err
	}
	if err := grm.Exec(`create index if not exists idx_reward_events_event_time on reward_events (event_time);`).Error; err != nil {
		return err
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506021201_rewardEvents"
}
