package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeBodyIsValidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Challenge(rec, `token "expired" at 12:00`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, `token "expired" at 12:00`, body["detail"])
}

func TestLoggingRecordsStatusAndActingUser(t *testing.T) {
	log, hook := test.NewNullLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	wrapped := Logging(log)(next)

	req := httptest.NewRequest("POST", "/transaction/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserContextKey, "alice"))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "alice", entry.Data["user"])
	assert.Equal(t, http.StatusCreated, entry.Data["status"])
	assert.Equal(t, "POST", entry.Data["method"])
}

func TestLoggingOmitsUserWhenUnauthenticated(t *testing.T) {
	log, hook := test.NewNullLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Logging(log)(next)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Len(t, hook.Entries, 1)
	_, ok := hook.LastEntry().Data["user"]
	assert.False(t, ok)
}
