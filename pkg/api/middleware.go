package api

import (
	"net/http"
	"time"

	"txn-insights/pkg/logging"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID reuses the caller's request id or generates one, echoes it on
// the response and stores a logger carrying it in the request context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := s.logger.With(logging.RequestID(id))
		next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), logger)))
	})
}

// instrument records status and latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(srw, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		if s.recorder != nil {
			s.recorder.RecordHTTPRequest(route, r.Method, srw.statusCode, duration)
		}

		logging.FromContext(r.Context()).Debug("request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", srw.statusCode),
			zap.Duration("duration", duration),
		)
	})
}

// statusResponseWriter captures the status code
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// routeTemplate returns the matched route template, or "unmatched" so raw
// paths never become label values.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}

	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tmpl
}
