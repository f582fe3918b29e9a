package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/errors"
)

type contextKey string

const (
	TraceKey  contextKey = "trace"
	LoggerKey contextKey = "logger"

	RequestIDHeader = "X-Request-ID"
)

type TraceInfo struct {
	RequestID string
	StartTime time.Time
	UserAgent string
	RemoteIP  string
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if !lrw.wroteHeader {
		lrw.WriteHeader(http.StatusOK)
	}
	size, err := lrw.ResponseWriter.Write(b)
	lrw.responseSize += int64(size)
	return size, err
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	if lrw.wroteHeader {
		return
	}
	lrw.statusCode = code
	lrw.wroteHeader = true
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging tags each request with an id, logs its outcome through base and
// turns handler panics into 500 responses. A nil base uses the standard
// logger.
func Logging(base *logrus.Entry) func(http.Handler) http.Handler {
	if base == nil {
		base = logrus.NewEntry(logrus.StandardLogger())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceInfo := &TraceInfo{
				RequestID: uuid.New().String(),
				StartTime: time.Now(),
				UserAgent: r.UserAgent(),
				RemoteIP:  r.RemoteAddr,
			}
			w.Header().Set(RequestIDHeader, traceInfo.RequestID)

			logger := base.WithFields(logrus.Fields{
				"request_id": traceInfo.RequestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote_ip":  traceInfo.RemoteIP,
			})

			ctx := context.WithValue(r.Context(), TraceKey, traceInfo)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			r = r.WithContext(ctx)

			lrw := newLoggingResponseWriter(w)

			defer func() {
				if rec := recover(); rec != nil {
					err := errors.Internal("LoggingMiddleware", fmt.Errorf("%v", rec), "Panic recovered")
					logger.WithError(err).WithField("stack", string(debug.Stack())).Error("Panic in handler")
					if !lrw.wroteHeader {
						http.Error(lrw, "Internal Server Error", http.StatusInternalServerError)
					}
				}

				logger = logger.WithFields(logrus.Fields{
					"status":   lrw.statusCode,
					"duration": time.Since(traceInfo.StartTime).String(),
					"size":     lrw.responseSize,
				})
				switch {
				case lrw.statusCode >= 500:
					logger.Error("Request completed with server error")
				case lrw.statusCode >= 400:
					logger.Warn("Request completed with client error")
				default:
					logger.Debug("Request completed successfully")
				}
			}()

			next.ServeHTTP(lrw, r)
		})
	}
}

// LoggingMiddleware is Logging with the standard logger.
func LoggingMiddleware(next http.Handler) http.Handler {
	return Logging(nil)(next)
}

func GetTraceInfo(ctx context.Context) *TraceInfo {
	if trace, ok := ctx.Value(TraceKey).(*TraceInfo); ok {
		return trace
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	if trace := GetTraceInfo(ctx); trace != nil {
		return trace.RequestID
	}
	return ""
}

func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(LoggerKey).(*logrus.Entry); ok {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
