package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/jobs"
	"github.com/ternarybob/respondeo/internal/services/metrics"
	"github.com/ternarybob/respondeo/internal/services/sse"
	redisstore "github.com/ternarybob/respondeo/internal/storage/redis"
)

func newFixture(t *testing.T) (*Scheduler, *jobs.Service) {
	t.Helper()

	logger := common.GetLogger()

	mr := miniredis.RunT(t)
	conn, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := redisstore.NewJobStorage(conn, logger)
	orchestrator := jobs.NewService(store, 10, logger)
	streams := sse.NewManager(store, orchestrator, metrics.NewRegistry(), 30, logger)

	return NewScheduler(orchestrator, streams, 0, logger), orchestrator
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := newFixture(t)

	require.NoError(t, s.Start("0 0 * * * *"))
	s.Stop()
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s, _ := newFixture(t)
	assert.Error(t, s.Start("not a schedule"))
}

func TestScheduler_SweepRemovesStaleTerminalJobs(t *testing.T) {
	s, orchestrator := newFixture(t)
	// Zero threshold so any terminal job is stale
	s.ageHours = 0
	ctx := context.Background()

	job, err := orchestrator.Create(ctx, 300, 0)
	require.NoError(t, err)

	success := models.JobStatusSuccess
	full := 100.0
	_, err = orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &full})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	s.runMaintenance()

	_, err = orchestrator.Get(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
