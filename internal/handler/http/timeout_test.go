package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeout_FastHandlerPasses(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"matched":true}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/identify", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matched":true}`, w.Body.String())
}

func TestTimeout_SlowHandlerGets504(t *testing.T) {
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/identify", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"error":"request timeout"}`, w.Body.String())
}

func TestTimeout_LateWriteDiscarded(t *testing.T) {
	release := make(chan struct{})
	wrote := make(chan error, 1)
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, err := w.Write([]byte(`{"matched":true}`))
		wrote <- err
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/identify", nil))
	close(release)

	// タイムアウト後の書き込みは捨てられ 504 本文だけが残る
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"error":"request timeout"}`, w.Body.String())
	assert.ErrorIs(t, <-wrote, http.ErrHandlerTimeout)
}

func TestTimeout_HandlerAnswerBeatsDeadline(t *testing.T) {
	handler := Timeout(30 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		time.Sleep(60 * time.Millisecond)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/search", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeadlineWriter_ImplicitOKOnFirstWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	dw := &deadlineWriter{inner: rec}

	n, err := dw.Write([]byte("body"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusOK, rec.Code)
}
