package eyes_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neboloop/acmevisual/internal/eyes"
	"github.com/neboloop/acmevisual/internal/eyes/eyestest"
)

const testAPIKey = "test-key"

func newEyes(t *testing.T, srv *eyestest.Server) (*eyes.ClassicRunner, *eyes.Eyes) {
	t.Helper()
	runner := eyes.NewClassicRunner()
	e := eyes.New(runner, eyes.WithHTTPClient(srv.Client()))
	conf := e.Configuration()
	conf.APIKey = testAPIKey
	conf.ServerURL = srv.URL
	conf.Batch = eyes.NewBatchInfo("unit batch")
	e.SetConfiguration(conf)
	return runner, e
}

func TestOpenCheckClose(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	runner, e := newEyes(t, srv)
	page := &eyestest.Page{PageHeight: 900, PageTitle: "ACME demo app"}
	ctx := context.Background()

	require.NoError(t, e.Open(ctx, page, "ACME Bank Web App", "Log into bank account", eyes.RectangleSize{Width: 1200, Height: 600}))
	assert.True(t, e.IsOpen())
	assert.Equal(t, 1200, page.Width)
	assert.Equal(t, 600, page.Height)

	require.NoError(t, e.Check(ctx, eyes.Window().Fully().WithName("Login page")))
	require.NoError(t, e.Check(ctx, eyes.Window().Fully().WithName("Main page").Layout()))
	e.CloseAsync(ctx)
	assert.False(t, e.IsOpen())

	summary, err := runner.GetAllTestResults(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 2, summary.Matches)

	res := summary.Results[0].TestResults
	require.NotNil(t, res)
	assert.Equal(t, "Log into bank account", res.Name)
	assert.Equal(t, "ACME Bank Web App", res.AppName)
	assert.Equal(t, "unit batch", res.BatchName)
	assert.Equal(t, eyes.RectangleSize{Width: 1200, Height: 600}, res.Viewport)
	assert.False(t, res.IsAborted)

	starts := srv.StartInfos()
	require.Len(t, starts, 1)
	assert.Equal(t, "ACME Bank Web App", starts[0].AppIDOrName)
	assert.Equal(t, eyes.MatchLevelStrict, starts[0].DefaultMatchSettings.MatchLevel)
	assert.Equal(t, eyes.RectangleSize{Width: 1200, Height: 600}, starts[0].Environment.DisplaySize)

	checkpoints := srv.Checkpoints()
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "Login page", checkpoints[0].Tag)
	assert.Equal(t, eyes.MatchLevelStrict, checkpoints[0].MatchLevel)
	assert.Equal(t, "Main page", checkpoints[1].Tag)
	assert.Equal(t, eyes.MatchLevelLayout, checkpoints[1].MatchLevel)
	assert.Equal(t, "ACME demo app", checkpoints[0].Title)
	assert.Equal(t, eyes.RectangleSize{Width: 1200, Height: 900}, checkpoints[0].ImageSize)
	assert.Equal(t, []bool{true, true}, page.Shots)

	stops := srv.Stops()
	require.Len(t, stops, 1)
	assert.False(t, stops[0].Aborted)
}

func TestOpenRequiresAPIKey(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	_, e := newEyes(t, srv)
	conf := e.Configuration()
	conf.APIKey = ""
	e.SetConfiguration(conf)

	err := e.Open(context.Background(), &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10})
	assert.ErrorIs(t, err, eyes.ErrMissingAPIKey)
	assert.False(t, e.IsOpen())
}

func TestOpenRejectedKey(t *testing.T) {
	srv := eyestest.NewServer("other-key")
	defer srv.Close()

	_, e := newEyes(t, srv)
	err := e.Open(context.Background(), &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10})

	var apiErr *eyes.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestCheckBeforeOpen(t *testing.T) {
	e := eyes.New(eyes.NewClassicRunner())
	err := e.Check(context.Background(), eyes.Window().WithName("early"))
	assert.ErrorIs(t, err, eyes.ErrNotOpen)
}

func TestCheckScreenshotFailure(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	_, e := newEyes(t, srv)
	page := &eyestest.Page{}
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, page, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))

	page.ScreenshotErr = errors.New("tab crashed")
	err := e.Check(ctx, eyes.Window().WithName("broken"))
	assert.ErrorContains(t, err, "tab crashed")
	assert.Empty(t, srv.Checkpoints())
}

func TestAbortAsync(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	runner, e := newEyes(t, srv)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))

	e.AbortAsync(ctx)
	e.AbortAsync(ctx) // second call is a no-op
	e.CloseAsync(ctx) // so is closing after abort

	summary, err := runner.GetAllTestResults(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].TestResults.IsAborted)

	stops := srv.Stops()
	require.Len(t, stops, 1)
	assert.True(t, stops[0].Aborted)
	assert.False(t, stops[0].UpdateBaseline)
}

func TestAbortWithoutOpenIsNoop(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	runner, e := newEyes(t, srv)
	e.AbortAsync(context.Background())

	summary, err := runner.GetAllTestResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Empty(t, srv.Stops())
}

func TestGetAllTestResultsAbortsUnclosed(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()

	runner, e := newEyes(t, srv)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))

	_, err := runner.GetAllTestResults(ctx)
	require.NoError(t, err)

	stops := srv.Stops()
	require.Len(t, stops, 1)
	assert.True(t, stops[0].Aborted)
	assert.False(t, e.IsOpen())
}

func TestDiffsFound(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()
	srv.Mismatch["Main page"] = true

	runner, e := newEyes(t, srv)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))
	require.NoError(t, e.Check(ctx, eyes.Window().WithName("Login page")))
	require.NoError(t, e.Check(ctx, eyes.Window().WithName("Main page")))
	e.CloseAsync(ctx)

	summary, err := runner.GetAllTestResults(ctx)
	require.NotNil(t, summary)
	var diffs *eyes.DiffsFoundError
	require.ErrorAs(t, err, &diffs)
	assert.Equal(t, "test", diffs.Results.Name)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 1, summary.Mismatches)
	assert.Equal(t, 1, summary.Matches)
}

func TestLongRunningStop(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()
	srv.LongRunning = true

	runner, e := newEyes(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))
	require.NoError(t, e.Check(ctx, eyes.Window().WithName("only")))
	e.CloseAsync(ctx)

	summary, err := runner.GetAllTestResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Results[0].TestResults.Steps)
}

func TestStopFailureIsException(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)
	defer srv.Close()
	srv.FailStop = 503

	runner, e := newEyes(t, srv)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))
	e.CloseAsync(ctx)

	summary, err := runner.GetAllTestResults(ctx)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Exceptions)

	var apiErr *eyes.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)
}

func TestRunnerLeavesNoGoroutines(t *testing.T) {
	srv := eyestest.NewServer(testAPIKey)

	runner, e := newEyes(t, srv)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, &eyestest.Page{}, "app", "test", eyes.RectangleSize{Width: 10, Height: 10}))
	require.NoError(t, e.Check(ctx, eyes.Window().WithName("only")))
	e.CloseAsync(ctx)

	_, err := runner.GetAllTestResults(ctx)
	require.NoError(t, err)

	srv.Close()
	goleak.VerifyNone(t)
}
