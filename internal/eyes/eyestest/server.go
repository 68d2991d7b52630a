// Package eyestest provides an in-process fake of the Eyes session API.
package eyestest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/neboloop/acmevisual/internal/eyes"
)

// Checkpoint is an upload received by the fake.
type Checkpoint struct {
	SessionID       string
	Tag             string
	MatchLevel      eyes.MatchLevel
	Title           string
	ImageSize       eyes.RectangleSize
	ScreenshotBytes int
}

// Stop is a session stop received by the fake.
type Stop struct {
	SessionID      string
	Aborted        bool
	UpdateBaseline bool
}

// Server is a fake Eyes server backed by httptest.
type Server struct {
	*httptest.Server

	apiKey string

	mu          sync.Mutex
	starts      []eyes.StartInfo
	checkpoints []Checkpoint
	stops       []Stop
	tasks       map[string]*task
	nextID      int

	// Mismatch marks checkpoint tags that differ from the baseline.
	Mismatch map[string]bool

	// LongRunning answers session stops with 202 + Location, polled once more before completion.
	LongRunning bool

	// FailStop makes session stops answer with this status code when non-zero.
	FailStop int
}

type task struct {
	polls   int
	results eyes.TestResults
}

// NewServer starts a fake that accepts apiKey.
func NewServer(apiKey string) *Server {
	s := &Server{
		apiKey:   apiKey,
		tasks:    make(map[string]*task),
		Mismatch: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions/running", s.handleStart)
	mux.HandleFunc("POST /api/sessions/running/{id}", s.handleMatch)
	mux.HandleFunc("DELETE /api/sessions/running/{id}", s.handleStop)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)

	s.Server = httptest.NewServer(s.authorize(mux))
	return s
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != s.apiKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var info eyes.StartInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("session-%d", s.nextID)
	s.starts = append(s.starts, info)
	s.mu.Unlock()

	batchID := ""
	if info.BatchInfo != nil {
		batchID = info.BatchInfo.ID
	}
	writeJSON(w, http.StatusCreated, eyes.RunningSession{
		ID:        id,
		SessionID: id,
		BatchID:   batchID,
		URL:       s.URL + "/app/batches/" + batchID + "/" + id,
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var data eyes.MatchWindowData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	shot, err := base64.StdEncoding.DecodeString(data.AppOutput.Screenshot64)
	if err != nil {
		http.Error(w, "bad screenshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.checkpoints = append(s.checkpoints, Checkpoint{
		SessionID:       r.PathValue("id"),
		Tag:             data.Tag,
		MatchLevel:      data.Options.ImageMatchSettings.MatchLevel,
		Title:           data.AppOutput.Title,
		ImageSize:       data.AppOutput.ImageSize,
		ScreenshotBytes: len(shot),
	})
	asExpected := !s.Mismatch[data.Tag]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, eyes.MatchResult{AsExpected: asExpected, WindowID: len(s.Checkpoints())})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	aborted, _ := strconv.ParseBool(r.URL.Query().Get("aborted"))
	updateBaseline, _ := strconv.ParseBool(r.URL.Query().Get("updateBaseline"))

	s.mu.Lock()
	s.stops = append(s.stops, Stop{SessionID: id, Aborted: aborted, UpdateBaseline: updateBaseline})
	failStop := s.FailStop
	results := s.resultsLocked(id, aborted)
	s.mu.Unlock()

	if failStop != 0 {
		http.Error(w, "stop failed", failStop)
		return
	}

	if s.LongRunning {
		s.mu.Lock()
		taskID := "task-" + id
		s.tasks[taskID] = &task{results: results}
		s.mu.Unlock()

		w.Header().Set("Location", "/api/tasks/"+taskID)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	t, ok := s.tasks[r.PathValue("id")]
	if ok {
		t.polls++
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if t.polls < 2 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, t.results)
}

func (s *Server) resultsLocked(sessionID string, aborted bool) eyes.TestResults {
	var res eyes.TestResults
	for _, c := range s.checkpoints {
		if c.SessionID != sessionID {
			continue
		}
		res.Steps++
		if s.Mismatch[c.Tag] {
			res.Mismatches++
		} else {
			res.Matches++
		}
	}
	switch {
	case aborted:
		res.Status = eyes.StatusFailed
	case res.Mismatches > 0:
		res.Status = eyes.StatusUnresolved
	default:
		res.Status = eyes.StatusPassed
	}
	return res
}

// StartInfos returns the received session starts.
func (s *Server) StartInfos() []eyes.StartInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eyes.StartInfo(nil), s.starts...)
}

// Checkpoints returns the received checkpoints in order.
func (s *Server) Checkpoints() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Checkpoint(nil), s.checkpoints...)
}

// Stops returns the received session stops.
func (s *Server) Stops() []Stop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Stop(nil), s.stops...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
