// -----------------------------------------------------------------------
// SSE Writer - wire formatting for server-sent events
// -----------------------------------------------------------------------

package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Writer emits SSE frames and flushes after each one
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for event streaming. Returns an
// error when the underlying writer cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	// Streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent emits one frame: id line (when set), event line, one
// data line per JSON payload line, then the blank separator
func (s *Writer) WriteEvent(id, eventType string, payload interface{}) error {
	frame, err := FormatEvent(id, eventType, payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// FormatEvent renders the SSE wire form of one event
func FormatEvent(id, eventType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode event payload: %w", err)
	}

	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	fmt.Fprintf(&b, "event: %s\n", eventType)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String(), nil
}
