// Package responsewriter observes what a handler wrote. The logging,
// metrics and tracing middleware all need the final status and body size
// without interfering with the response itself.
package responsewriter

import "net/http"

// ResponseWriter records the status code and byte count of a response.
type ResponseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

// Wrap returns a recording writer. Until the handler says otherwise the
// status reads as 200, matching net/http's implicit behavior.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *ResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *ResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// StatusCode returns the status the handler committed.
func (w *ResponseWriter) StatusCode() int { return w.status }

// BytesWritten returns the body size so far.
func (w *ResponseWriter) BytesWritten() int { return w.bytes }

// Unwrap exposes the inner writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
