//go:build integration

package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lo/internal/jobs"
	"lo/internal/testinfra"
)

func TestRepo_RecurringLifecycle(t *testing.T) {
	gdb := testinfra.Postgres(t)
	repo := &jobs.Repo{DB: gdb}
	ctx := context.Background()
	past := time.Now().Add(-time.Second)

	require.NoError(t, repo.EnsureRecurring(ctx, "event_sync:los-angeles", jobs.TypeEventSync, []byte(`{"city":"los-angeles"}`), past))
	require.NoError(t, repo.EnsureRecurring(ctx, "event_sync:los-angeles", jobs.TypeEventSync, []byte(`{"city":"los-angeles"}`), past))

	var n int64
	require.NoError(t, gdb.Model(&jobs.Job{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	job, err := repo.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jobs.StatusRunning, job.Status)

	again, err := repo.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, again, "a running job is not claimed twice")

	require.NoError(t, repo.Reschedule(ctx, job.ID, time.Now().Add(time.Hour)))
	notDue, err := repo.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, notDue)

	require.NoError(t, repo.MarkFailed(ctx, job.ID, "gave up"))
	require.NoError(t, repo.EnsureRecurring(ctx, "event_sync:los-angeles", jobs.TypeEventSync, []byte(`{"city":"los-angeles"}`), past))
	revived, err := repo.Claim(ctx, "w3")
	require.NoError(t, err)
	require.NotNil(t, revived)
	assert.Equal(t, job.ID, revived.ID)
}
