package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// randomHex returns n random bytes as a lowercase hex string
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Extremely unlikely; fall back to a uuid-derived string
		return uuid.New().String()[:n*2]
	}
	return hex.EncodeToString(b)
}

// NewJobID generates a unique job ID
// Format: job_<12 hex chars>
func NewJobID() string {
	return "job_" + randomHex(6)
}

// NewRequestID generates a unique request correlation ID
// Format: req_<12 hex chars>
func NewRequestID() string {
	return "req_" + randomHex(6)
}

// NewConnectionID generates a unique SSE connection ID
// Format: sse_<12 hex chars>
func NewConnectionID() string {
	return "sse_" + randomHex(6)
}

// NewClientID generates a client ID for SSE consumers that do not
// present their own
// Format: client_<8 hex chars>
func NewClientID() string {
	return "client_" + randomHex(4)
}

// NewEventID generates a per-job event ID. The millisecond prefix keeps
// IDs monotonically ordered within a job so clients can resume from the
// last ID they observed.
// Format: evt_<unix ms>_<8 hex chars>
func NewEventID() string {
	return fmt.Sprintf("evt_%d_%s", time.Now().UnixMilli(), randomHex(4))
}

// NewVectorID generates a vector record ID
func NewVectorID() string {
	return uuid.New().String()
}
