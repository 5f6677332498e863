// -----------------------------------------------------------------------
// Middleware chain - recovery, request id, security headers, CORS,
// per-IP rate limiting, body size cap, request timeout, logging
// -----------------------------------------------------------------------

package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/handlers"
)

// withMiddleware wraps the router with the middleware chain
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = s.loggingMiddleware(handler)
	handler = s.timeoutMiddleware(handler)
	handler = s.bodyLimitMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.securityHeadersMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

// recoveryMiddleware recovers from panics and returns 500 error
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.app.Logger.Error().
					Str("error", fmt.Sprintf("%v", err)).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware echoes the inbound X-Request-ID, minting one
// when the client sent none
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = common.NewRequestID()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets the baseline response headers
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-XSS-Protection", "1; mode=block")
		header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		header.Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS headers from the configured origin list
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := s.app.Config.Server.CORSOrigins

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := ""
		for _, candidate := range origins {
			if candidate == "*" {
				allowed = "*"
				break
			}
			if candidate == origin {
				allowed = origin
				break
			}
		}

		if allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID, X-Client-ID, X-Request-ID")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces the per-IP request budget
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(clientIP(r)).Allow() {
			handlers.WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded", "try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterFor returns the limiter for the address, creating it on
// first sight
func (s *Server) limiterFor(addr string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, ok := s.limiters[addr]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[addr] = limiter
	}
	return limiter
}

// bodyLimitMiddleware caps the request body size on non-stream routes
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > s.maxRequestSize {
			handlers.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large",
				fmt.Sprintf("limit is %d bytes", s.maxRequestSize))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestSize)

		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds non-stream requests, answering 408 when
// the handler overruns. The response is buffered so a late handler
// write never races the timeout body.
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()

		buffered := &bufferedResponse{header: make(http.Header)}
		done := make(chan struct{})

		go func() {
			defer close(done)
			next.ServeHTTP(buffered, r.WithContext(ctx))
		}()

		select {
		case <-done:
			buffered.copyTo(w)
		case <-ctx.Done():
			s.app.Logger.Warn().
				Str("path", r.URL.Path).
				Dur("timeout", s.requestTimeout).
				Msg("Request timed out")
			handlers.WriteError(w, http.StatusRequestTimeout, "Request timeout", "")
		}
	})
}

// loggingMiddleware logs HTTP requests and responses and feeds the
// request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logEvent := s.app.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr)
		if r.URL.RawQuery != "" {
			logEvent.Str("query", r.URL.RawQuery)
		}
		logEvent.Msg("HTTP request")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.app.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("HTTP response")

		s.app.Metrics.IncCounter("http_requests_total", map[string]string{
			"method": r.Method,
			"status": fmt.Sprintf("%d", rw.statusCode),
		}, 1)
		s.app.Metrics.ObserveHistogram("http_request_duration_seconds", map[string]string{
			"method": r.Method,
		}, duration.Seconds())
	})
}

// clientIP strips the port from the remote address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes streaming flushes through to the underlying writer
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// bufferedResponse captures a handler's full response in memory so
// the timeout middleware can decide what reaches the wire
type bufferedResponse struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.statusCode == 0 {
		b.statusCode = code
	}
}

func (b *bufferedResponse) copyTo(w http.ResponseWriter) {
	for key, values := range b.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if b.statusCode == 0 {
		b.statusCode = http.StatusOK
	}
	w.WriteHeader(b.statusCode)
	w.Write(b.body.Bytes())
}
