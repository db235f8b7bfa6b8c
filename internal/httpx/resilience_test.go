package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(client *http.Client) ClientConfig {
	return ClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func getRequest(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestDoRetriesServerErrorsUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := Do(context.Background(), fastConfig(server.Client()), NewBreaker("test"), getRequest(server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := Do(context.Background(), fastConfig(server.Client()), NewBreaker("test"), getRequest(server.URL))
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(4), calls.Load()) // initial attempt plus three retries
}

func TestDoRateLimitedAndUnexpectedStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	_, err := Do(context.Background(), fastConfig(server.Client()), NewBreaker("limited"), getRequest(server.URL+"/limited"))
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = Do(context.Background(), fastConfig(server.Client()), NewBreaker("missing"), getRequest(server.URL+"/missing"))
	assert.ErrorIs(t, err, ErrUnexpected)
}

func TestDoOpenCircuitShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig(server.Client())
	cfg.Backoff.MaxRetries = 10

	_, err := Do(context.Background(), cfg, NewBreaker("test"), getRequest(server.URL))
	require.ErrorIs(t, err, ErrCircuitOpen)

	// The breaker trips after six consecutive failures; the next attempt
	// never reaches the server.
	assert.Equal(t, int32(6), calls.Load())
}

func TestDoRejectsMissingClient(t *testing.T) {
	_, err := Do(context.Background(), ClientConfig{Backoff: DefaultBackoff}, NewBreaker("test"), getRequest("http://example.invalid"))
	assert.Error(t, err)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, fastConfig(server.Client()), NewBreaker("test"), getRequest(server.URL))
	assert.ErrorIs(t, err, context.Canceled)
}
