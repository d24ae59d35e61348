package http

import (
	"fmt"
	"net/http"
)

const (
	// maxPathLen bounds the request path. The longest legitimate path is
	// /recommendations/{trackID} with a numeric catalog ID.
	maxPathLen = 1024

	// maxQueryLen bounds the raw query string. Every operation takes its
	// inputs from JSON or multipart bodies, so queries stay short.
	maxQueryLen = 1024

	// maxHeaderValueLen bounds any single header value. Clients send
	// nothing larger than a content type and a request ID.
	maxHeaderValueLen = 4096
)

// InputValidation rejects oversized request surfaces before any handler
// work starts. Body size is bounded separately by LimitRequestBody, which
// knows the clip upload budget.
func InputValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.URL.Path) > maxPathLen {
				rejectInput(w, http.StatusRequestURITooLong, "request path too long")
				return
			}
			if len(r.URL.RawQuery) > maxQueryLen {
				rejectInput(w, http.StatusRequestURITooLong, "query string too long")
				return
			}
			for _, values := range r.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueLen {
						rejectInput(w, http.StatusBadRequest, "request header too large")
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectInput(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
