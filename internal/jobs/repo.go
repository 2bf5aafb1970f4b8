package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DefaultStaleAfter is how long a RUNNING job may hold its lock before Claim
// hands it to another worker.
const DefaultStaleAfter = 5 * time.Minute

type Repo struct {
	DB         *gorm.DB
	StaleAfter time.Duration
}

func (r *Repo) staleAfter() time.Duration {
	if r.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return r.StaleAfter
}

// EnsureRecurring creates the job identified by key if it does not exist, and
// revives it if a previous run left it finished.
func (r *Repo) EnsureRecurring(ctx context.Context, key, typ string, payload []byte, runAt time.Time) error {
	return r.DB.WithContext(ctx).Exec(`
insert into jobs (dedupe_key, type, payload, run_at, status, attempts, max_attempts, created_at, updated_at)
values (?, ?, ?, ?, 'PENDING', 0, 8, now(), now())
on conflict (dedupe_key) where dedupe_key is not null do update
set status='PENDING',
    type=excluded.type,
    payload=excluded.payload,
    run_at=excluded.run_at,
    attempts=0,
    locked_by=null,
    locked_at=null,
    updated_at=now()
where jobs.status in ('DONE', 'FAILED');
`, key, typ, payload, runAt).Error
}

// Claim takes the oldest due job for workerID. Concurrent workers never get
// the same row; a nil job means nothing is due.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	staleBefore := time.Now().Add(-r.staleAfter())
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a worker that died mid-run leaves its job RUNNING
		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, staleBefore).
			Updates(map[string]any{"status": StatusPending, "locked_by": nil, "locked_at": nil}).Error; err != nil {
			return err
		}

		return tx.Raw(`
update jobs
set status = ?, locked_by = ?, locked_at = now(), updated_at = now()
where id = (
  select id from jobs
  where status = ? and run_at <= now()
  order by run_at, id
  limit 1
  for update skip locked
)
returning *`, StatusRunning, workerID, StatusPending).Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status='DONE', locked_by=null, locked_at=null, updated_at=now() where id=?`, id).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status='FAILED', last_error=?, locked_by=null, locked_at=null, updated_at=now() where id=?`, errMsg, id).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, attempts, runAt, errMsg, id).Error
}

// Reschedule re-arms a recurring job for its next run and resets attempts.
func (r *Repo) Reschedule(ctx context.Context, id uint64, runAt time.Time) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status='PENDING',
    attempts=0,
    run_at=?,
    locked_by=null,
    locked_at=null,
    updated_at=now()
where id=?`, runAt, id).Error
}
