package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lo/internal/jobs"
	"lo/internal/logging"
	"lo/internal/message"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Ping checks connectivity for the health endpoint.
func Ping(gdb *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// gormWriter routes gorm's logger into zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logging.Warn().Str("component", "gorm").Msgf(format, args...)
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&message.Message{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		// one row per provider event; user rows have null event columns and never collide
		`create unique index if not exists uq_messages_event_source_id on messages(event_source, external_event_id);`,
		`create index if not exists idx_messages_active on messages(expires_at, message_type);`,
		`create index if not exists idx_messages_latlng on messages(lat, lng);`,
		`create index if not exists idx_messages_created on messages(created_at desc);`,
		`create index if not exists idx_messages_tags on messages using gin (tags);`,
		`alter table messages drop constraint if exists chk_messages_type;`,
		`alter table messages add constraint chk_messages_type check (
  (message_type = 'user' and user_id is not null and event_source is null and external_event_id is null)
  or (message_type = 'event' and user_id is null and event_source is not null and external_event_id is not null)
);`,
		`create unique index if not exists uq_jobs_dedupe_key on jobs(dedupe_key) where dedupe_key is not null;`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
