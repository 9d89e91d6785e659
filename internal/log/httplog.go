package log

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the id assigned to each dashboard request
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// HTTPLogEntry is the set of fields logged for each request
type HTTPLogEntry struct {
	RequestID  string
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
}

// LogHTTPRequest writes one access log line.  Server errors log at error
// level, everything else at info.
func LogHTTPRequest(logger *zap.SugaredLogger, e HTTPLogEntry) {
	fields := []interface{}{
		"request_id", e.RequestID,
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration_ms", e.Duration.Milliseconds(),
		"size", e.Size,
		"remote_addr", e.RemoteAddr,
		"user_agent", e.UserAgent,
	}
	if e.Status >= http.StatusInternalServerError {
		logger.Errorw("http request", fields...)
		return
	}
	logger.Infow("http request", fields...)
}

// HTTPMiddleware assigns a request id, passes it back in RequestIDHeader and
// logs the request once the handler returns
func HTTPMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()

			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, req)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			LogHTTPRequest(logger, HTTPLogEntry{
				RequestID:  requestID,
				Method:     req.Method,
				Path:       req.URL.Path,
				Status:     rec.status,
				Duration:   time.Since(start),
				Size:       rec.size,
				RemoteAddr: req.RemoteAddr,
				UserAgent:  req.UserAgent(),
			})
		})
	}
}
