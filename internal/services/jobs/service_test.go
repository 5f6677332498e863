package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/models"
	redisstore "github.com/ternarybob/respondeo/internal/storage/redis"
)

func newTestService(t *testing.T, maxConcurrent int) *Service {
	t.Helper()

	mr := miniredis.RunT(t)

	conn, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr(), common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := redisstore.NewJobStorage(conn, common.GetLogger())
	return NewService(store, maxConcurrent, common.GetLogger())
}

func TestService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	job, err := svc.Create(ctx, 300, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	loaded, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
}

func TestService_AdmissionControl(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 2)

	_, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	_, err = svc.Create(ctx, 300, 0)
	assert.ErrorIs(t, err, models.ErrAdmissionDenied)
}

func TestService_AdmissionIgnoresTerminalJobs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 1)

	job, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	status := models.JobStatusSuccess
	progress := 100.0
	ok, err := svc.Update(ctx, job.ID, &models.JobPatch{Status: &status, Progress: &progress})
	require.NoError(t, err)
	require.True(t, ok)

	// The terminal job no longer counts against admission
	_, err = svc.Create(ctx, 300, 0)
	assert.NoError(t, err)
}

func TestService_UpdateTerminalGuard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	job, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	errStatus := models.JobStatusError
	ok, err := svc.Update(ctx, job.ID, &models.JobPatch{Status: &errStatus})
	require.NoError(t, err)
	require.True(t, ok)

	// Terminal never reverts
	running := models.JobStatusRunning
	ok, err = svc.Update(ctx, job.ID, &models.JobPatch{Status: &running})
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, loaded.Status)
}

func TestService_UpdateMissingJob(t *testing.T) {
	svc := newTestService(t, 10)

	running := models.JobStatusRunning
	ok, err := svc.Update(context.Background(), "job_missing", &models.JobPatch{Status: &running})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ListActiveOrdering(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	first, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)
	second, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	// Touch the first job so it becomes the most recently updated
	time.Sleep(5 * time.Millisecond)
	running := models.JobStatusRunning
	_, err = svc.Update(ctx, first.ID, &models.JobPatch{Status: &running})
	require.NoError(t, err)

	jobs, err := svc.ListActive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)

	t.Run("limit applies", func(t *testing.T) {
		jobs, err := svc.ListActive(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestService_SubscribeClosesOnTerminal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	job, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	events, err := svc.Subscribe(ctx, job.ID)
	require.NoError(t, err)

	running := models.JobStatusRunning
	_, err = svc.Update(ctx, job.ID, &models.JobPatch{Status: &running})
	require.NoError(t, err)

	success := models.JobStatusSuccess
	progress := 100.0
	_, err = svc.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &progress})
	require.NoError(t, err)

	var received []*models.JobEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Stream closed after the terminal event
				require.NotEmpty(t, received)
				last := received[len(received)-1]
				assert.Equal(t, models.JobStatusSuccess, last.Status)
				assert.Equal(t, 100.0, last.Progress)

				// Observed progress is non-decreasing
				prev := -1.0
				for _, e := range received {
					assert.GreaterOrEqual(t, e.Progress, prev)
					prev = e.Progress
				}
				return
			}
			received = append(received, event)
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

func TestService_Cleanup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	job, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	ok, err := svc.Cleanup(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Cleanup(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_CleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 10)

	job, err := svc.Create(ctx, 300, 0)
	require.NoError(t, err)

	success := models.JobStatusSuccess
	progress := 100.0
	_, err = svc.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &progress})
	require.NoError(t, err)

	// Fresh terminal job survives a 1h threshold
	removed, err := svc.CleanupOlderThan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// Zero-hour threshold removes it
	time.Sleep(5 * time.Millisecond)
	removed, err = svc.CleanupOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestService_Health(t *testing.T) {
	svc := newTestService(t, 10)

	health := svc.Health(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.GreaterOrEqual(t, health.PingMS, 0.0)
}
