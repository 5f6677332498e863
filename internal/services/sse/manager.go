// -----------------------------------------------------------------------
// SSE Manager - connection registry and the job progress stream
// protocol: connection_start, history replay, snapshot, live events,
// heartbeats, stale cleanup
// -----------------------------------------------------------------------

package sse

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// staleMultiplier closes a connection after this many silent
// heartbeat intervals
const staleMultiplier = 3

// Connection tracks one open stream
type Connection struct {
	ID          string
	ClientID    string
	JobID       string
	CreatedAt   time.Time
	LastPing    time.Time
	LastEventID string
}

// Manager owns connection state and serves job streams
type Manager struct {
	store        interfaces.JobStore
	orchestrator interfaces.JobOrchestrator
	metrics      interfaces.MetricsRegistry
	heartbeat    time.Duration
	logger       arbor.ILogger

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewManager creates the streaming manager
func NewManager(
	store interfaces.JobStore,
	orchestrator interfaces.JobOrchestrator,
	metricsRegistry interfaces.MetricsRegistry,
	heartbeatSeconds int,
	logger arbor.ILogger,
) *Manager {
	if heartbeatSeconds <= 0 {
		heartbeatSeconds = 30
	}
	return &Manager{
		store:        store,
		orchestrator: orchestrator,
		metrics:      metricsRegistry,
		heartbeat:    time.Duration(heartbeatSeconds) * time.Second,
		logger:       logger,
		connections:  make(map[string]*Connection),
	}
}

// register creates the connection record. A missing client id gets a
// fresh one so reconnects can correlate.
func (m *Manager) register(jobID, clientID, lastEventID string) *Connection {
	if clientID == "" {
		clientID = common.NewClientID()
	}

	conn := &Connection{
		ID:          common.NewConnectionID(),
		ClientID:    clientID,
		JobID:       jobID,
		CreatedAt:   time.Now(),
		LastPing:    time.Now(),
		LastEventID: lastEventID,
	}

	m.mu.Lock()
	m.connections[conn.ID] = conn
	count := len(m.connections)
	m.mu.Unlock()

	m.metrics.SetGauge("sse_connections", nil, float64(count))
	return conn
}

// unregister drops the connection record
func (m *Manager) unregister(connectionID string) {
	m.mu.Lock()
	delete(m.connections, connectionID)
	count := len(m.connections)
	m.mu.Unlock()

	m.metrics.SetGauge("sse_connections", nil, float64(count))
}

// ConnectionCount returns the number of open streams
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// SweepStale removes connections silent for 3x the heartbeat interval
// and returns how many were dropped. The serving goroutines notice
// their record is gone and terminate.
func (m *Manager) SweepStale() int {
	cutoff := time.Now().Add(-staleMultiplier * m.heartbeat)

	m.mu.Lock()
	removed := 0
	for id, conn := range m.connections {
		if conn.LastPing.Before(cutoff) {
			delete(m.connections, id)
			removed++
		}
	}
	count := len(m.connections)
	m.mu.Unlock()

	m.metrics.SetGauge("sse_connections", nil, float64(count))
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Stale SSE connections cleaned up")
	}
	return removed
}

// alive reports whether the connection record still exists, touching
// last_ping when it does
func (m *Manager) alive(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[connectionID]
	if ok {
		conn.LastPing = time.Now()
	}
	return ok
}

// StreamJob serves the full job progress protocol on w. It blocks
// until the job reaches a terminal state, the client disconnects, or
// the connection goes stale.
func (m *Manager) StreamJob(ctx context.Context, w http.ResponseWriter, jobID, clientID, lastEventID string) error {
	writer, err := NewWriter(w)
	if err != nil {
		return err
	}

	job, err := m.orchestrator.Get(ctx, jobID)
	if err != nil {
		return err
	}

	conn := m.register(jobID, clientID, lastEventID)
	defer m.unregister(conn.ID)

	m.logger.Info().
		Str("connection_id", conn.ID).
		Str("client_id", conn.ClientID).
		Str("job_id", jobID).
		Str("last_event_id", lastEventID).
		Msg("SSE stream opened")

	// Subscribe before replaying so no live event slips between the
	// history read and the subscription
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := m.orchestrator.Subscribe(subCtx, jobID)
	if err != nil {
		m.writeStreamError(writer, "subscription failed")
		return err
	}

	if err := writer.WriteEvent(common.NewEventID(), "connection_start", map[string]interface{}{
		"type":               "connection_start",
		"connection_id":      conn.ID,
		"client_id":          conn.ClientID,
		"heartbeat_interval": int(m.heartbeat.Seconds()),
		"capabilities":       map[string]bool{"replay": true},
	}); err != nil {
		return err
	}

	if lastEventID != "" {
		if err := m.replay(ctx, writer, jobID, lastEventID); err != nil {
			return err
		}
	}

	if err := writer.WriteEvent(common.NewEventID(), "job_status", map[string]interface{}{
		"type":           "job_status",
		"job_id":         job.ID,
		"status":         job.Status,
		"stage":          job.Stage,
		"progress":       job.Progress,
		"message":        job.Message,
		"chunks_created": job.ChunksCreated,
	}); err != nil {
		return err
	}

	// The snapshot may already be terminal; nothing more will arrive
	if job.Status.IsTerminal() {
		return nil
	}

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				// Subscription closed after the terminal event
				return nil
			}
			if err := writer.WriteEvent(event.EventID, string(event.Type), event); err != nil {
				m.logger.Debug().Err(err).Str("connection_id", conn.ID).Msg("SSE write failed, client gone")
				return nil
			}
			if !m.alive(conn.ID) {
				return nil
			}
			if event.IsTerminal() {
				return nil
			}

		case <-ticker.C:
			if err := writer.WriteEvent("", "heartbeat", map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": float64(time.Now().UnixMilli()) / 1000.0,
			}); err != nil {
				return nil
			}
			if !m.alive(conn.ID) {
				return nil
			}
		}
	}
}

// replay emits history events published after lastEventID. An id not
// found in history yields no replay.
func (m *Manager) replay(ctx context.Context, writer *Writer, jobID, lastEventID string) error {
	history, err := m.store.EventHistory(ctx, jobID)
	if err != nil {
		m.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to load event history for replay")
		return nil
	}

	start := -1
	for i, event := range history {
		if event.EventID == lastEventID {
			start = i + 1
			break
		}
	}
	if start < 0 || start >= len(history) {
		return nil
	}

	for _, event := range history[start:] {
		payload := map[string]interface{}{
			"type":           "replay",
			"original_event": event,
			"original_data": map[string]interface{}{
				"status":         event.Status,
				"stage":          event.Stage,
				"progress":       event.Progress,
				"message":        event.Message,
				"chunks_created": event.ChunksCreated,
			},
			"original_timestamp": event.Timestamp,
		}
		if err := writer.WriteEvent("replay_"+event.EventID, "replay", payload); err != nil {
			return err
		}
	}

	m.logger.Debug().
		Str("job_id", jobID).
		Int("replayed", len(history)-start).
		Msg("Event history replayed")
	return nil
}

// writeStreamError emits the terminal stream_error frame, ignoring
// write failures since the stream is ending anyway
func (m *Manager) writeStreamError(writer *Writer, message string) {
	_ = writer.WriteEvent(common.NewEventID(), string(models.EventStreamError), map[string]interface{}{
		"type":    string(models.EventStreamError),
		"message": message,
	})
}
