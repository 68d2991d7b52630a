package eyes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultServerURL is the public Eyes API endpoint.
const DefaultServerURL = "https://eyesapi.applitools.com"

const (
	defaultPollInterval = 500 * time.Millisecond
	maxPollInterval     = 5 * time.Second
	agentID             = "acmevisual/1.0"
)

// ErrMissingAPIKey is returned when a session is opened without an API key.
var ErrMissingAPIKey = errors.New("eyes API key is not set (APPLITOOLS_API_KEY)")

// APIError is a non-2xx response from the Eyes server.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eyes server returned %d for %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Client communicates with the Eyes session REST API.
type Client struct {
	serverURL    string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewClient creates a client for serverURL authenticated with apiKey.
func NewClient(serverURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("invalid eyes server URL %q: %w", serverURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		serverURL:    strings.TrimSuffix(serverURL, "/"),
		apiKey:       apiKey,
		httpClient:   httpClient,
		pollInterval: defaultPollInterval,
	}, nil
}

// ServerURL returns the base API server URL.
func (c *Client) ServerURL() string { return c.serverURL }

// --------------------------------------------------------------------------
// Wire types
// --------------------------------------------------------------------------

// AppEnvironment describes where the checkpoints were rendered.
type AppEnvironment struct {
	OS          string        `json:"os"`
	HostingApp  string        `json:"hostingApp"`
	DisplaySize RectangleSize `json:"displaySize"`
}

// ImageMatchSettings carries the comparison mode for a session or a step.
type ImageMatchSettings struct {
	MatchLevel MatchLevel `json:"matchLevel"`
}

// StartInfo is the body of a session start request.
type StartInfo struct {
	AgentID              string             `json:"agentId"`
	AppIDOrName          string             `json:"appIdOrName"`
	ScenarioIDOrName     string             `json:"scenarioIdOrName"`
	BatchInfo            *BatchInfo         `json:"batchInfo"`
	BranchName           string             `json:"branchName,omitempty"`
	Environment          AppEnvironment     `json:"environment"`
	DefaultMatchSettings ImageMatchSettings `json:"defaultMatchSettings"`
}

// RunningSession is the server handle of an open test.
type RunningSession struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	BatchID    string `json:"batchId"`
	BaselineID string `json:"baselineId"`
	URL        string `json:"url"`
	IsNew      bool   `json:"isNew"`
}

// AppOutput is one captured checkpoint.
type AppOutput struct {
	Title        string        `json:"title"`
	Screenshot64 string        `json:"screenshot64"`
	ImageSize    RectangleSize `json:"imageSize"`
}

// MatchOptions are per-step settings.
type MatchOptions struct {
	Name               string             `json:"name"`
	ImageMatchSettings ImageMatchSettings `json:"imageMatchSettings"`
}

// MatchWindowData is the body of a checkpoint upload.
type MatchWindowData struct {
	AppOutput      AppOutput    `json:"appOutput"`
	Tag            string       `json:"tag"`
	IgnoreMismatch bool         `json:"ignoreMismatch"`
	Options        MatchOptions `json:"options"`
}

// MatchResult is the server's immediate answer to a checkpoint.
type MatchResult struct {
	AsExpected bool `json:"asExpected"`
	WindowID   int  `json:"windowId"`
}

// --------------------------------------------------------------------------
// Sessions
// --------------------------------------------------------------------------

// StartSession calls POST /api/sessions/running.
func (c *Client) StartSession(ctx context.Context, info *StartInfo) (*RunningSession, error) {
	if info.AgentID == "" {
		info.AgentID = agentID
	}
	var resp RunningSession
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/running", nil, info, &resp); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("start session: server returned no session id")
	}
	return &resp, nil
}

// MatchWindow uploads a checkpoint: POST /api/sessions/running/{id}.
func (c *Client) MatchWindow(ctx context.Context, sessionID string, data *MatchWindowData) (*MatchResult, error) {
	var resp MatchResult
	path := "/api/sessions/running/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, data, &resp); err != nil {
		return nil, fmt.Errorf("match window %q: %w", data.Tag, err)
	}
	return &resp, nil
}

// StopSession ends a session: DELETE /api/sessions/running/{id}.
// aborted discards the test; updateBaseline accepts new checkpoints as the baseline.
func (c *Client) StopSession(ctx context.Context, sessionID string, aborted, updateBaseline bool) (*TestResults, error) {
	params := url.Values{}
	params.Set("aborted", strconv.FormatBool(aborted))
	params.Set("updateBaseline", strconv.FormatBool(updateBaseline))

	var resp TestResults
	path := "/api/sessions/running/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodDelete, path, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}
	return &resp, nil
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

func (c *Client) newRequest(ctx context.Context, method, rawURL string, params url.Values, body []byte) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Eyes-Expect", "202+location")
	req.Header.Set("Eyes-Date", time.Now().UTC().Format(http.TimeFormat))
	return req, nil
}

// doJSON sends a request and decodes the JSON response into dest.
// A 202 with a Location header is a long-running operation that is polled until done.
func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, reqBody any, dest any) error {
	var body []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}

	req, err := c.newRequest(ctx, method, c.serverURL+path, params, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", redactKey(err))
	}

	if resp.StatusCode == http.StatusAccepted && resp.Header.Get("Location") != "" {
		location := resp.Header.Get("Location")
		resp.Body.Close()
		resp, err = c.poll(ctx, location)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// redactKey masks the apiKey query parameter in the URL of a transport error.
func redactKey(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		ue.URL = "(redacted)"
		return err
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "****")
		u.RawQuery = q.Encode()
	}
	ue.URL = u.String()
	return err
}

// poll GETs location until the server stops answering 202.
func (c *Client) poll(ctx context.Context, location string) (*http.Response, error) {
	target, err := c.resolve(location)
	if err != nil {
		return nil, fmt.Errorf("invalid poll location %q: %w", location, err)
	}

	interval := c.pollInterval
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		req, err := c.newRequest(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll request failed: %w", redactKey(err))
		}
		if resp.StatusCode != http.StatusAccepted {
			return resp, nil
		}
		resp.Body.Close()

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

func (c *Client) resolve(location string) (string, error) {
	base, err := url.Parse(c.serverURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
