// Package httpclient is a small client for JSON APIs using the token
// credential policy: authenticate once with login/password, then send
// the obtained token with every request. A token given in the config
// is used directly without authenticating.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

const authenticateEndpoint = "accounts/login/"

// Config carries the server parameters, usually one "server" section
// of the application config. Either Token, or Login and Password,
// must be set.
type Config struct {
	URL      string
	Token    string
	Login    string
	Password string
}

type Client struct {
	base      *url.URL
	http      *http.Client
	token     string
	login     string
	password  string
	muteRaise bool
}

type Option func(*Client)

// MuteRaise downgrades request and response errors to logs: the
// failing call returns nil and a zero result. Authentication errors
// are never muted.
func MuteRaise() Option {
	return func(c *Client) { c.muteRaise = true }
}

// WithHTTPClient substitutes the underlying HTTP client, e.g. to set a
// timeout or a custom transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for the server described by cfg. The endpoint
// prefix is appended to the server URL, e.g. "api/".
func New(cfg Config, prefix string, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Known(errors.Wrapf(err, "invalid server URL %q", cfg.URL))
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Known(errors.Wrapf(ErrParameter, "server URL %q must have a scheme and a host", cfg.URL))
	}
	base.Path = joinPath(base.Path, prefix)

	c := &Client{
		base:     base,
		http:     &http.Client{},
		token:    cfg.Token,
		login:    cfg.Login,
		password: cfg.Password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load validates the credential configuration. Kept separate from New
// so a client can be constructed from a partial config and completed
// later.
func (c *Client) Load() error {
	if c.token == "" && (c.login == "" || c.password == "") {
		return errors.Known(errors.Wrap(ErrParameter,
			"you have to either specify 'token' or the couple 'login' and 'password' in config file"))
	}
	return nil
}

// Authenticated reports whether a token is available.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Authenticate exchanges login/password for a token. If a token was
// given in the config this is a no-op.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.token != "" {
		return nil
	}

	payload := map[string]string{
		"login":    c.login,
		"password": c.password,
	}

	log.Debug().Msg("authenticating to the server")
	raw, status, err := c.send(ctx, http.MethodPost, authenticateEndpoint, payload, false)
	if err != nil {
		return errors.Wrap(err, "unable to authenticate to the server")
	}

	switch {
	case status == http.StatusBadRequest:
		return errors.Known(errors.Wrap(ErrAuthentication,
			"login to server failed, check the config file"))
	case status < 200 || status >= 300:
		return errors.Known(errors.Wrapf(ErrAuthentication,
			"unable to authenticate to the server, error %d: %s", status, truncate(string(raw))))
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return errors.Known(errors.Chain(ErrAuthentication, err))
	}

	c.token = body.Token
	log.Info().Msg("login to server successful")
	log.Debug().Str("token", c.token).Msg("token obtained")
	return nil
}

// Get requests the endpoint and decodes the JSON response into out.
// out may be nil to discard the response.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.call(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, payload, out any) error {
	return c.call(ctx, http.MethodPost, endpoint, payload, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, payload, out any) error {
	return c.call(ctx, http.MethodPut, endpoint, payload, out)
}

func (c *Client) Patch(ctx context.Context, endpoint string, payload, out any) error {
	return c.call(ctx, http.MethodPatch, endpoint, payload, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.call(ctx, http.MethodDelete, endpoint, nil, out)
}

// call sends an authenticated request and manages errors generically.
// With MuteRaise, request and response errors are logged and swallowed
// so callers on a best-effort path can carry on.
func (c *Client) call(ctx context.Context, method, endpoint string, payload, out any) error {
	if c.token == "" {
		return errors.Known(ErrNotAuthenticated)
	}

	raw, status, err := c.send(ctx, method, endpoint, payload, true)
	if err != nil {
		if c.muteRaise {
			errors.Log(err, "unable to request the server")
			return nil
		}
		return err
	}

	if status < 200 || status >= 300 {
		err := errors.Known(errors.Wrapf(ErrResponse,
			"error %d when communicating with the server: %s", status, truncate(string(raw))))
		if c.muteRaise {
			errors.Log(err, "unable to request the server")
			return nil
		}
		return err
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Known(errors.Chain(ErrResponse, err))
		}
	}
	return nil
}

// send performs one exchange and returns the raw body and status. Only
// transport-level problems are errors here; status handling belongs to
// the caller.
func (c *Client) send(ctx context.Context, method, endpoint string, payload any, withToken bool) ([]byte, int, error) {
	u := *c.base
	u.Path = joinPath(u.Path, endpoint)

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to encode request payload")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	log.Debug().Str("method", method).Str("url", u.String()).Msg("sending request to the server")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Known(errors.Chain(ErrRequest, err))
	}
	defer errors.LogCallErr(resp.Body.Close, "failed to close response body")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Known(errors.Chain(ErrRequest, err))
	}
	return raw, resp.StatusCode, nil
}

func joinPath(base, elem string) string {
	if elem == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(elem, "/")
}

// truncate shortens a server message for logs and error values. The
// cut is made on rune boundaries so multi-byte messages stay valid.
func truncate(message string) string {
	const limit = 100
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
