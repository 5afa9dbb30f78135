package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"taskapi/internal/correlationid"
	"taskapi/internal/logger"
)

const maxRequestIDLength = 128

// RequestID takes the caller's X-Request-ID, or generates one, echoes it on
// the response and stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationid.RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = correlationid.New()
		}
		w.Header().Set(correlationid.RequestIDHeader, id)
		ctx := correlationid.ContextWithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request once it completes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Sugar.FromContext(r.Context()).Infof(
				"%s %s %d %dB in %s", r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
