package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/deployctl/internal/logger"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

// readyAfter serves 503 until the n-th request, then 200.
func readyAfter(n int32) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) >= n {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	return server, &hits
}

func newTestPoller(url string, s *sleepRecorder, maxAttempts int) *Poller {
	return NewPoller(NewHTTPChecker(url),
		WithMaxAttempts(maxAttempts),
		WithInterval(time.Second),
		WithSleep(s.sleep),
		WithLogger(logger.Nop()),
	)
}

func TestPollUntilReady_HealthyOnThirdAttempt(t *testing.T) {
	server, hits := readyAfter(3)
	defer server.Close()
	s := &sleepRecorder{}

	report, err := newTestPoller(server.URL, s, 3).PollUntilReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeHealthy, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, s.calls)
}

func TestPollUntilReady_TimeoutAfterMaxAttempts(t *testing.T) {
	server, hits := readyAfter(1000)
	defer server.Close()
	s := &sleepRecorder{}

	report, err := newTestPoller(server.URL, s, 3).PollUntilReady(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, OutcomeTimeout, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, int32(3), hits.Load())
	// No pause after the final attempt.
	assert.Len(t, s.calls, 2)
	assert.False(t, report.Last.Healthy)
}

func TestPollUntilReady_ImmediateSuccessNeverSleeps(t *testing.T) {
	server, _ := readyAfter(1)
	defer server.Close()
	s := &sleepRecorder{}

	report, err := newTestPoller(server.URL, s, 30).PollUntilReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempts)
	assert.Empty(t, s.calls)
}

func TestPollUntilReady_Cancelled(t *testing.T) {
	var checks int
	checker := CheckerFunc(func(context.Context) Result {
		checks++
		return Result{Message: "HTTP 503"}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPoller(checker, WithMaxAttempts(5), WithInterval(time.Hour), WithLogger(logger.Nop()))
	report, err := p.PollUntilReady(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, checks)
	assert.Equal(t, OutcomeTimeout, report.Outcome)
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(CheckerFunc(func(context.Context) Result { return Result{} }))
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts())
	assert.Equal(t, DefaultInterval, p.interval)
}
