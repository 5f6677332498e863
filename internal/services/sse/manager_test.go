package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/jobs"
	"github.com/ternarybob/respondeo/internal/services/metrics"
	redisstore "github.com/ternarybob/respondeo/internal/storage/redis"
)

type sseFixture struct {
	manager      *Manager
	store        *redisstore.JobStorage
	orchestrator *jobs.Service
}

func newSSEFixture(t *testing.T) *sseFixture {
	t.Helper()

	logger := common.GetLogger()

	mr := miniredis.RunT(t)
	conn, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := redisstore.NewJobStorage(conn, logger)
	orchestrator := jobs.NewService(store, 10, logger)
	manager := NewManager(store, orchestrator, metrics.NewRegistry(), 30, logger)

	return &sseFixture{manager: manager, store: store, orchestrator: orchestrator}
}

// frames splits a raw SSE body into event frames
func frames(body string) []string {
	var out []string
	for _, frame := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(frame) != "" {
			out = append(out, frame)
		}
	}
	return out
}

func eventType(frame string) string {
	for _, line := range strings.Split(frame, "\n") {
		if after, ok := strings.CutPrefix(line, "event: "); ok {
			return after
		}
	}
	return ""
}

func TestFormatEvent(t *testing.T) {
	frame, err := FormatEvent("evt_1", "job_updated", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, "id: evt_1\nevent: job_updated\ndata: {\"k\":\"v\"}\n\n", frame)

	// Events without an id omit the id line
	frame, err = FormatEvent("", "heartbeat", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(frame, "event: heartbeat\n"))
}

func TestStreamJob_Protocol(t *testing.T) {
	f := newSSEFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Create(ctx, 300, 0)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	done := make(chan error, 1)
	go func() {
		done <- f.manager.StreamJob(ctx, recorder, job.ID, "", "")
	}()

	// Give the stream time to subscribe before publishing
	time.Sleep(100 * time.Millisecond)

	running := models.JobStatusRunning
	progress := 40.0
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &running, Progress: &progress})
	require.NoError(t, err)

	success := models.JobStatusSuccess
	full := 100.0
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &full})
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after the terminal event")
	}

	all := frames(recorder.Body.String())
	require.GreaterOrEqual(t, len(all), 3)

	assert.Equal(t, "connection_start", eventType(all[0]))
	assert.Contains(t, all[0], `"heartbeat_interval":30`)
	assert.Contains(t, all[0], `"connection_id":"sse_`)

	assert.Equal(t, "job_status", eventType(all[1]))

	last := all[len(all)-1]
	assert.Equal(t, "job_updated", eventType(last))
	assert.Contains(t, last, `"status":"success"`)

	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Zero(t, f.manager.ConnectionCount())
}

func TestStreamJob_TerminalSnapshotClosesImmediately(t *testing.T) {
	f := newSSEFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Create(ctx, 300, 0)
	require.NoError(t, err)

	errStatus := models.JobStatusError
	message := "No chunks created"
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &errStatus, Message: &message})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	require.NoError(t, f.manager.StreamJob(ctx, recorder, job.ID, "", ""))

	all := frames(recorder.Body.String())
	require.Len(t, all, 2)
	assert.Equal(t, "connection_start", eventType(all[0]))
	assert.Equal(t, "job_status", eventType(all[1]))
	assert.Contains(t, all[1], `"status":"error"`)
}

func TestStreamJob_MissingJob(t *testing.T) {
	f := newSSEFixture(t)

	recorder := httptest.NewRecorder()
	err := f.manager.StreamJob(context.Background(), recorder, "job_missing", "", "")
	assert.Error(t, err)
}

func TestStreamJob_Replay(t *testing.T) {
	f := newSSEFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Create(ctx, 300, 0)
	require.NoError(t, err)

	// Drive the job to terminal while nobody is connected
	running := models.JobStatusRunning
	p1 := 20.0
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &running, Progress: &p1})
	require.NoError(t, err)

	success := models.JobStatusSuccess
	p2 := 100.0
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &p2})
	require.NoError(t, err)

	history, err := f.store.EventHistory(ctx, job.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 3)

	// Resume after the first event; everything later replays in order
	presented := history[0].EventID

	recorder := httptest.NewRecorder()
	require.NoError(t, f.manager.StreamJob(ctx, recorder, job.ID, "client_abc", presented))

	all := frames(recorder.Body.String())
	require.GreaterOrEqual(t, len(all), 2+len(history)-1)

	assert.Equal(t, "connection_start", eventType(all[0]))
	assert.Contains(t, all[0], `"client_id":"client_abc"`)

	replayed := all[1 : 1+len(history)-1]
	for i, frame := range replayed {
		assert.Equal(t, "replay", eventType(frame), "frame %d", i)
		assert.Contains(t, frame, "id: replay_"+history[i+1].EventID)
		assert.Contains(t, frame, `"original_event"`)
		assert.Contains(t, frame, `"original_timestamp"`)
	}

	// Snapshot follows the replay block
	assert.Equal(t, "job_status", eventType(all[1+len(replayed)]))
}

func TestStreamJob_UnknownLastEventIDSkipsReplay(t *testing.T) {
	f := newSSEFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Create(ctx, 300, 0)
	require.NoError(t, err)

	success := models.JobStatusSuccess
	full := 100.0
	_, err = f.orchestrator.Update(ctx, job.ID, &models.JobPatch{Status: &success, Progress: &full})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	require.NoError(t, f.manager.StreamJob(ctx, recorder, job.ID, "", "evt_never_seen"))

	for _, frame := range frames(recorder.Body.String()) {
		assert.NotEqual(t, "replay", eventType(frame))
	}
}

func TestManager_SweepStale(t *testing.T) {
	f := newSSEFixture(t)

	fresh := f.manager.register("job_a", "", "")
	stale := f.manager.register("job_b", "", "")

	f.manager.mu.Lock()
	f.manager.connections[stale.ID].LastPing = time.Now().Add(-10 * time.Minute)
	f.manager.mu.Unlock()

	removed := f.manager.SweepStale()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, f.manager.ConnectionCount())
	assert.True(t, f.manager.alive(fresh.ID))
	assert.False(t, f.manager.alive(stale.ID))
}
