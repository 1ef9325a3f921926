package httpfetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *Fetcher {
	return New(2*time.Second, 3, 5*time.Millisecond, zerolog.Nop())
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"hello": "world"})
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "world", out["hello"])
}

func TestGetJSONNonRetryableDecodeError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, patcherr.KindDecode, patcherr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "decode errors must not be retried")
}

func TestGetJSONRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "true", out["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetStreamReportsContentLength(t *testing.T) {
	payload := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	stream, err := newTestFetcher().GetStream(context.Background(), srv.URL)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, int64(len(payload)), stream.SizeHint)

	got, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		json.NewEncoder(w).Encode(map[string]string{"user": r.FormValue("user")})
	}))
	defer srv.Close()

	var out map[string]string
	form := url.Values{"user": {"rashi"}}
	err := newTestFetcher().PostForm(context.Background(), srv.URL, form, &out)
	require.NoError(t, err)
	assert.Equal(t, "rashi", out["user"])
}
