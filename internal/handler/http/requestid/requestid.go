// Package requestid tags every request with an ID so the log lines of one
// identification (upload, transcription, match, blurb) can be stitched
// back together.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is where clients may supply their own ID and where the chosen ID
// is echoed back.
const Header = "X-Request-ID"

type ctxKey struct{}

// FromContext returns the request ID, or "" outside a request.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewContext stores the request ID on the context.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware adopts the caller's X-Request-ID or mints a UUID, then makes
// the ID visible to handlers via context and to the caller via the
// response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
	})
}
