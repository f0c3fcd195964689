package rspamd

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// clientFor points a Client at a test server.
func clientFor(t *testing.T, ts *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return NewClient(host, port, timeout, zap.NewNop())
}

func TestCheckMessageSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkv2", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"score": 12.5,
			"required_score": 15.0,
			"action": "add header",
			"symbols": {
				"FORGED_SENDER": {"score": 0.3, "description": "Sender is forged"},
				"BAYES_SPAM": {"score": 5.1, "description": "Bayes classifier"},
				"DMARC_POLICY_REJECT": {"score": 5.1, "description": "DMARC reject policy"}
			}
		}`))
	}))
	defer ts.Close()

	client := clientFor(t, ts, 5*time.Second)
	result := client.CheckMessage(context.Background(), []byte("raw message"))

	require.True(t, result.IsAvailable)
	assert.Equal(t, 12.5, result.Score)
	assert.Equal(t, 15.0, result.RequiredScore)
	assert.Equal(t, "add header", result.Action)
	assert.Equal(t, "suspicious", result.Classification)
	assert.True(t, result.IsSpam)
	assert.Empty(t, result.Error)

	// Symbols ordered by descending score, then name
	require.Len(t, result.Symbols, 3)
	assert.Equal(t, "BAYES_SPAM", result.Symbols[0].Name)
	assert.Equal(t, "DMARC_POLICY_REJECT", result.Symbols[1].Name)
	assert.Equal(t, "FORGED_SENDER", result.Symbols[2].Name)
}

func TestCheckMessageRejectAction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 25.0, "required_score": 15.0, "action": "reject", "symbols": {}}`))
	}))
	defer ts.Close()

	client := clientFor(t, ts, 5*time.Second)
	result := client.CheckMessage(context.Background(), []byte("raw"))

	require.True(t, result.IsAvailable)
	assert.Equal(t, "reject", result.Action)
	assert.Equal(t, "spam", result.Classification)
	assert.True(t, result.IsSpam)
}

func TestCheckMessageFillsDefaults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 1.0}`))
	}))
	defer ts.Close()

	client := clientFor(t, ts, 5*time.Second)
	result := client.CheckMessage(context.Background(), []byte("raw"))

	require.True(t, result.IsAvailable)
	assert.Equal(t, "no action", result.Action)
	assert.Equal(t, 15.0, result.RequiredScore)
	assert.Equal(t, "ham", result.Classification)
	assert.False(t, result.IsSpam)
}

func TestCheckMessageNon200DegradesGracefully(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := clientFor(t, ts, 5*time.Second)
	result := client.CheckMessage(context.Background(), []byte("raw"))

	require.NotNil(t, result)
	assert.False(t, result.IsAvailable)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, "no action", result.Action)
	assert.Equal(t, "unknown", result.Classification)
	assert.NotEmpty(t, result.Error)
}

func TestCheckMessageBadBodyDegradesGracefully(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	client := clientFor(t, ts, 5*time.Second)
	result := client.CheckMessage(context.Background(), []byte("raw"))

	assert.False(t, result.IsAvailable)
	assert.NotEmpty(t, result.Error)
}

func TestCheckMessageUnreachableEngine(t *testing.T) {
	client := NewClient("127.0.0.1", 1, time.Second, zap.NewNop())
	result := client.CheckMessage(context.Background(), []byte("raw"))

	require.NotNil(t, result)
	assert.False(t, result.IsAvailable)
	assert.NotEmpty(t, result.Error)
}

func TestCheckMessageTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"score": 0}`))
	}))
	defer ts.Close()

	client := clientFor(t, ts, 50*time.Millisecond)
	result := client.CheckMessage(context.Background(), []byte("raw"))

	assert.False(t, result.IsAvailable)
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.Write([]byte("pong\r\n"))
	}))
	defer ts.Close()

	client := clientFor(t, ts, time.Second)
	assert.True(t, client.Ping(context.Background()))

	down := NewClient("127.0.0.1", 1, time.Second, zap.NewNop())
	assert.False(t, down.Ping(context.Background()))
}
