package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout returns middleware that bounds a request's wall clock time and
// answers 504 when the budget runs out. The budget has to cover the slow
// path: transcription of a full clip plus an embedding round trip.
//
// The handler keeps running in its goroutine after the deadline, but its
// writes are discarded so the timeout body is never interleaved with a
// late response.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			dw := &deadlineWriter{inner: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				dw.abandon()
			}
		})
	}
}

// deadlineWriter lets exactly one side win: either the handler commits a
// response or the timeout does.
type deadlineWriter struct {
	inner     http.ResponseWriter
	mu        sync.Mutex
	committed bool
	abandoned bool
}

func (w *deadlineWriter) Header() http.Header {
	return w.inner.Header()
}

func (w *deadlineWriter) WriteHeader(statusCode int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned || w.committed {
		return
	}
	w.committed = true
	w.inner.WriteHeader(statusCode)
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned {
		return 0, http.ErrHandlerTimeout
	}
	if !w.committed {
		w.committed = true
		w.inner.WriteHeader(http.StatusOK)
	}
	return w.inner.Write(p)
}

// abandon writes the 504 unless the handler already answered.
func (w *deadlineWriter) abandon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.abandoned = true
	if w.committed {
		return
	}
	w.inner.Header().Set("Content-Type", "application/json")
	w.inner.WriteHeader(http.StatusGatewayTimeout)
	_, _ = w.inner.Write([]byte(`{"error":"request timeout"}`))
}
