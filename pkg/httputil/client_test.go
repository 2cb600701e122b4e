package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:      "test",
		LogLevel: "error",
		HTTP: config.HTTPConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 3,
			RetryDelay: 10 * time.Millisecond,
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	client := New(cfg, logger.Nop())

	require.NotNil(t, client)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 3, client.retryConfig.MaxRetries)
	assert.True(t, client.retryConfig.Enabled)
	assert.Nil(t, client.limiter)
}

func TestNewWithRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = 2
	client := New(cfg, logger.Nop())

	require.NotNil(t, client.limiter)
}

func TestNewWithoutRetries(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.MaxRetries = 0
	client := New(cfg, logger.Nop())

	assert.False(t, client.retryConfig.Enabled)
}

func TestGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("date,count\n"))
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop())
	body, err := client.GetBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "date,count\n", string(body))
}

func TestGetBytesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop())
	_, err := client.GetBytes(context.Background(), server.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"length":2}`))
	}))
	defer server.Close()

	var out struct {
		Length int `json:"length"`
	}
	client := New(testConfig(), logger.Nop())
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, 2, out.Length)
}

func TestGetJSONEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	out := struct {
		Length int `json:"length"`
	}{Length: 7}
	client := New(testConfig(), logger.Nop())
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, 7, out.Length, "an empty body leaves the target unchanged")
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop())
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetryOn429(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop())
	_, err := client.GetBytes(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRetryExhausted(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.HTTP.MaxRetries = 2
	cfg.HTTP.RetryDelay = time.Millisecond
	client := New(cfg, logger.Nop())
	_, err := client.GetBytes(context.Background(), server.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := testConfig()
	cfg.HTTP.MaxRetries = 10
	cfg.HTTP.RetryDelay = time.Second
	client := New(cfg, logger.Nop())
	_, err := client.Get(ctx, server.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.statusCode))
		})
	}
}
