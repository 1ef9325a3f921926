// Package auth is the thin login REST client collaborator spec.md
// section 1 keeps out-of-core: a username/password exchange against
// Toontown Rewritten's login API with ToonGuard/2FA and queue-wait
// follow-ups. Grounded on original_source/launcher.py's
// login_worker/check_login_info/check_additional_auth/check_queue and
// launch_ttr.py's equivalent do_request loop.
package auth

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// DefaultLoginURL is the fixed login endpoint used by the original
// launcher and patcher.
const DefaultLoginURL = "https://www.toontownrewritten.com/api/login?format=json"

// Status mirrors the API's "success" field.
type Status string

const (
	StatusTrue    Status = "true"
	StatusFalse   Status = "false"
	StatusPartial Status = "partial"
	StatusDelayed Status = "delayed"
)

// Response is the JSON shape returned at every step of the login
// exchange; which fields are populated depends on Success.
type Response struct {
	Success       Status `json:"success"`
	Banner        string `json:"banner,omitempty"`
	ResponseToken string `json:"responseToken,omitempty"`
	QueueToken    string `json:"queueToken,omitempty"`
	Position      string `json:"position,omitempty"`
	ETA           string `json:"eta,omitempty"`
	GameServer    string `json:"gameserver,omitempty"`
	Cookie        string `json:"cookie,omitempty"`
}

// TokenPrompt asks the caller (the menu collaborator, typically) for a
// ToonGuard/2FA token given the banner text the API sent.
type TokenPrompt func(banner string) string

// Client performs the login exchange via a shared httpfetch.Requester.
type Client struct {
	Fetcher  httpfetch.Requester
	LoginURL string
	Sleep    func(time.Duration) // overridable for tests; defaults to time.Sleep
}

// New builds a Client against DefaultLoginURL.
func New(fetcher httpfetch.Requester) *Client {
	return &Client{Fetcher: fetcher, LoginURL: DefaultLoginURL, Sleep: time.Sleep}
}

// Login drives the full authenticate -> 2FA -> queue sequence
// described in original_source/launcher.py's login_worker, prompting
// for additional tokens via promptToken when the API reports "partial".
func (c *Client) Login(ctx context.Context, username, password string, promptToken TokenPrompt) (*Response, error) {
	resp, err := c.post(ctx, url.Values{"username": {username}, "password": {password}})
	if err != nil {
		return nil, err
	}

	for resp.Success == StatusPartial {
		token := promptToken(resp.Banner)
		resp, err = c.post(ctx, url.Values{"appToken": {token}, "authToken": {resp.ResponseToken}})
		if err != nil {
			return nil, err
		}
	}
	if resp.Success == StatusFalse {
		return nil, loginFailure(resp)
	}

	for resp.Success == StatusDelayed {
		eta, _ := strconv.Atoi(resp.ETA)
		if eta <= 0 {
			eta = 1
		}
		c.sleep(time.Duration(eta) * time.Second)
		resp, err = c.post(ctx, url.Values{"queueToken": {resp.QueueToken}})
		if err != nil {
			return nil, err
		}
	}
	if resp.Success == StatusFalse {
		return nil, loginFailure(resp)
	}

	return resp, nil
}

func (c *Client) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (c *Client) post(ctx context.Context, form url.Values) (*Response, error) {
	var resp Response
	if err := c.Fetcher.PostForm(ctx, c.LoginURL, form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func loginFailure(resp *Response) error {
	banner := resp.Banner
	if banner == "" {
		banner = "username or password may be incorrect, or the servers are down"
	}
	return patcherr.New(patcherr.KindNetwork, banner)
}
