// Package httpfetch implements the HttpFetcher described in spec
// section 4.4: GET/POST with a timeout and a bounded-retry policy. It
// generalizes the teacher's Requester interface (selfupdate/requester.go),
// which only offered a single Fetch(url) -> io.ReadCloser, to the three
// operations the patcher and its login collaborator actually need.
package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// DefaultTimeout is the 30s per-request timeout from spec section 5.
const DefaultTimeout = 30 * time.Second

// DefaultRetryCount and DefaultRetryInterval implement the single
// retry(3, 10s) policy spec section 9 asks for.
const (
	DefaultRetryCount    = 3
	DefaultRetryInterval = 10 * time.Second
)

// Fetcher wraps an *http.Client with the patcher's retry policy. The
// zero value is not usable; construct with New.
type Fetcher struct {
	Client        *http.Client
	RetryCount    int
	RetryInterval time.Duration
	Log           zerolog.Logger
}

// New builds a Fetcher with the given timeout and retry policy. A
// retryCount <= 0 disables retries (single attempt).
func New(timeout time.Duration, retryCount int, retryInterval time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client:        &http.Client{Timeout: timeout},
		RetryCount:    retryCount,
		RetryInterval: retryInterval,
		Log:           log,
	}
}

// Stream is the result of GetStream: a declared-or-unknown size hint
// and the live response body. The caller must Close it.
type Stream struct {
	SizeHint int64 // -1 if Content-Length was absent, per spec section 4.6 edge cases
	Body     io.ReadCloser
}

//go:generate mockgen -destination=./mocks/requester_mock.go -package=mocks -source=httpfetch.go

// Requester is the subset of *Fetcher's behavior its collaborators
// (internal/manifest, internal/driver, internal/executor,
// internal/auth) depend on. Declaring it as an interface lets their
// tests substitute a generated mock instead of an httptest server,
// generalizing the teacher's Requester interface
// (selfupdate/requester.go), which offered only a single
// Fetch(url) (io.ReadCloser, error) method.
type Requester interface {
	GetJSON(ctx context.Context, rawURL string, v interface{}) error
	GetStream(ctx context.Context, rawURL string) (*Stream, error)
	PostForm(ctx context.Context, rawURL string, form url.Values, v interface{}) error
}

var _ Requester = (*Fetcher)(nil)

// GetJSON performs a single GET per attempt, raising on non-2xx, and
// decodes the body as JSON into v. JSON decode failures are
// non-retryable per spec section 4.4.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v interface{}) error {
	return f.withRetry(ctx, "get_json "+rawURL, func() error {
		resp, err := f.doGet(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return backoff.Permanent(patcherr.Wrap(patcherr.KindDecode, err))
		}
		return nil
	})
}

// GetStream performs a streaming GET. The retry policy wraps
// connection establishment only: once the caller starts reading the
// body, a read failure is the caller's problem to retry (it already
// holds partial state), matching spec section 4.6's fetch step, which
// retries the whole fetch-to-staging-file attempt, not individual
// reads.
func (f *Fetcher) GetStream(ctx context.Context, rawURL string) (*Stream, error) {
	var stream *Stream
	err := f.withRetry(ctx, "get_stream "+rawURL, func() error {
		resp, err := f.doGet(ctx, rawURL)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return err
		}
		size := int64(-1)
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
				size = n
			}
		}
		stream = &Stream{SizeHint: size, Body: resp.Body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// PostForm submits a url-encoded form and decodes the JSON response.
// Kept here because the fetcher is shared with the login collaborator
// (spec section 4.4); it is not exercised by the patcher core itself.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, v interface{}) error {
	return f.withRetry(ctx, "post_form "+rawURL, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(patcherr.Wrap(patcherr.KindIO, err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := f.Client.Do(req)
		if err != nil {
			return patcherr.Wrap(patcherr.KindNetwork, err)
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return backoff.Permanent(patcherr.Wrap(patcherr.KindDecode, err))
		}
		return nil
	})
}

func (f *Fetcher) doGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(patcherr.Wrap(patcherr.KindIO, err))
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.KindNetwork, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return patcherr.New(patcherr.KindNetwork, fmt.Sprintf("bad status %s from %s", resp.Status, resp.Request.URL))
	}
	return nil
}

// withRetry applies the fixed retry(count, interval) policy from spec
// sections 4.4/9 via a constant backoff, capped at RetryCount attempts.
func (f *Fetcher) withRetry(ctx context.Context, op string, fn func() error) error {
	count := f.RetryCount
	if count <= 0 {
		count = 1
	}
	interval := f.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(count-1))
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err != nil && attempt < count {
			f.Log.Warn().Str("op", op).Int("attempt", attempt).Err(err).Msg("retrying")
		}
		return err
	}, policy)
	return err
}
