package eyes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := NewClient("", "key", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, c.ServerURL())

	c, err = NewClient("https://eyes.example/", "key", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://eyes.example", c.ServerURL())
}

func TestClientSendsKeyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "202+location", r.Header.Get("Eyes-Expect"))
		assert.NotEmpty(t, r.Header.Get("Eyes-Date"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var info StartInfo
		require.NoError(t, json.NewDecoder(r.Body).Decode(&info))
		assert.Equal(t, agentID, info.AgentID)
		assert.Equal(t, "app", info.AppIDOrName)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RunningSession{ID: "s1", URL: "https://eyes.example/s1"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)

	session, err := c.StartSession(context.Background(), &StartInfo{AppIDOrName: "app"})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
}

func TestClientStartSessionWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RunningSession{})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)

	_, err = c.StartSession(context.Background(), &StartInfo{})
	assert.ErrorContains(t, err, "no session id")
}

func TestClientPollsLongRunning(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/sessions/running/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("aborted"))
		assert.Equal(t, "false", r.URL.Query().Get("updateBaseline"))
		w.Header().Set("Location", "/api/tasks/t1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /api/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		if polls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_ = json.NewEncoder(w).Encode(TestResults{Status: StatusFailed, IsAborted: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)
	c.pollInterval = time.Millisecond

	results, err := c.StopSession(context.Background(), "s1", true, false)
	require.NoError(t, err)
	assert.True(t, results.IsAborted)
	assert.Equal(t, int32(3), polls.Load())
}

func TestClientPollRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/tasks/forever")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)
	c.pollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.StopSession(ctx, "s1", false, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)

	_, err = c.MatchWindow(context.Background(), "s1", &MatchWindowData{Tag: "Login page"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Body)
	assert.Equal(t, "/api/sessions/running/s1", apiErr.Path)
	assert.ErrorContains(t, err, `match window "Login page"`)
}

// closedURL returns the address of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestClientTransportErrorHidesKey(t *testing.T) {
	const key = "SECRET-KEY-123"
	c, err := NewClient(closedURL(t), key, nil)
	require.NoError(t, err)

	_, err = c.StartSession(context.Background(), &StartInfo{AppIDOrName: "app"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)
	assert.Contains(t, err.Error(), "apiKey=%2A%2A%2A%2A")
}

func TestClientPollErrorHidesKey(t *testing.T) {
	const key = "SECRET-KEY-456"
	gone := closedURL(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", gone+"/api/tasks/t1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, key, srv.Client())
	require.NoError(t, err)
	c.pollInterval = time.Millisecond

	_, err = c.StopSession(context.Background(), "s1", false, false)
	require.ErrorContains(t, err, "poll request failed")
	assert.NotContains(t, err.Error(), key)
}
