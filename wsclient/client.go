// Package wsclient maintains a persistent websocket connection to the
// server as a supervised worker. The connection loop runs as a timer
// unit body, a lost connection is retried after the reconnect
// interval, and any failure travels through the supervision queue.
package wsclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
	"git.tatikoma.dev/corpix/keel/supervisor"
)

var (
	// ErrNotConnected reports a send attempted without an established
	// connection.
	ErrNotConnected = errors.New("no connection established")

	// ErrAuthentication reports a handshake refused by the server.
	ErrAuthentication = errors.New("websocket authentication failed")

	// ErrNetwork reports an unreachable server.
	ErrNetwork = errors.New("network error")

	// ErrParameter reports invalid connection parameters.
	ErrParameter = errors.New("invalid websocket parameter")
)

// DefaultReconnectInterval is the delay between a lost connection and
// the next attempt when the config does not give one.
const DefaultReconnectInterval = 5 * time.Second

// Config carries the server parameters, usually the same "server"
// section the HTTP client is built from.
type Config struct {
	URL               string
	ReconnectInterval time.Duration
}

// Handler receives the data part of messages of one type.
type Handler func(data json.RawMessage)

// message is the wire envelope: a type tag and an optional payload.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is a timer worker owning one websocket connection. Incoming
// messages are dispatched by their type tag to handlers registered
// with SetHandler; OnConnected and OnConnectionLost are optional
// notification hooks.
type Client struct {
	*supervisor.TimerWorker

	url      *url.URL
	header   http.Header
	interval time.Duration

	OnConnected      func()
	OnConnectionLost func()

	mu       sync.Mutex
	conn     *websocket.Conn
	retry    bool
	handlers map[string]Handler

	// the connection allows one concurrent writer
	writeMu sync.Mutex
}

// New builds a client for the server described by cfg, bound to the
// supervision tree. The route is appended to the server URL; http and
// https schemes are mapped to their websocket counterparts. The header
// usually carries the authentication token obtained over HTTP.
//
// The worker is armed but not started: register handlers, then start
// the owned timer.
func New(stop *supervisor.Stop, errs *supervisor.Errors, cfg Config, route string, header http.Header, opts ...supervisor.WorkerOption) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Known(errors.Wrapf(err, "invalid server URL %q", cfg.URL))
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, errors.Known(errors.Wrapf(ErrParameter,
			"server URL %q must use an http, https, ws or wss scheme", cfg.URL))
	}
	if u.Host == "" {
		return nil, errors.Known(errors.Wrapf(ErrParameter, "server URL %q must have a host", cfg.URL))
	}
	u.Path = joinPath(u.Path, route)

	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}

	worker, err := supervisor.NewTimerWorker(stop, errs, opts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		TimerWorker: worker,
		url:         u,
		header:      header,
		interval:    interval,
		handlers:    map[string]Handler{},
	}

	// interrupt the blocked read on teardown, then run the caller's
	// own exit hook
	exit := worker.OnExit
	c.OnExit = func() {
		c.abort()
		if exit != nil {
			exit()
		}
	}

	if err := c.Redefine(0, c.run); err != nil {
		return nil, err
	}
	return c, nil
}

// SetHandler assigns the function receiving messages of the given
// type. Handlers are expected to be registered before the worker
// starts.
func (c *Client) SetHandler(messageType string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[messageType] = fn
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send serializes data to the server under the given message type.
func (c *Client) Send(messageType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.Known(errors.Wrap(ErrNotConnected, "unable to send message to the server"))
	}

	msg := message{Type: messageType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to encode message data")
		}
		msg.Data = raw
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return errors.Wrap(conn.WriteJSON(msg), "failed to send message to the server")
}

// run is the timer body: the connection loop. Each iteration is one
// connection attempt followed by the read loop; after a lost
// connection the loop waits out the reconnect interval on the stop
// signal before the next attempt.
func (c *Client) run() error {
	for {
		if err := c.connect(); err != nil {
			return err
		}
		if c.Stop().IsSet() {
			return nil
		}

		log.Warn().Dur("interval", c.interval).Msg("trying to reconnect")
		if c.Stop().Wait(c.interval) {
			return nil
		}
	}
}

// connect performs one attempt and reads until the connection ends. A
// nil return means the loop may retry (or the worker is stopping); an
// error is fatal and goes through the supervision queue.
func (c *Client) connect() error {
	log.Debug().Str("url", c.url.String()).Msg("connecting to server")

	conn, resp, err := websocket.DefaultDialer.Dial(c.url.String(), c.header)
	if err != nil {
		return c.dialFailed(resp, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.retry = false
	c.mu.Unlock()

	log.Info().Msg("websocket connected to server")
	if c.OnConnected != nil {
		c.OnConnected()
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return c.connectionClosed(err)
		}
		c.receive(raw)
	}
}

// dialFailed classifies a failed connection attempt. On teardown the
// failure is ignored; a refused handshake or a reset endpoint is a
// known configuration problem; anything else is a network failure,
// fatal on the first attempt and retried afterwards.
func (c *Client) dialFailed(resp *http.Response, err error) error {
	if resp != nil && resp.Body != nil {
		errors.LogCallErr(resp.Body.Close, "failed to close handshake response body")
	}

	if c.Stop().IsSet() {
		return nil
	}

	switch {
	case errors.Is(err, websocket.ErrBadHandshake):
		return errors.Known(errors.Wrap(ErrAuthentication, "unable to connect to server with this user"))
	case errors.Is(err, syscall.ECONNRESET):
		return errors.Known(errors.Wrap(ErrParameter, "invalid endpoint to the server"))
	}

	c.mu.Lock()
	retry := c.retry
	c.mu.Unlock()
	if retry {
		log.Warn().Err(err).Msg("unable to talk to the server")
		return nil
	}
	return errors.Known(errors.Chain(ErrNetwork, err))
}

// connectionClosed handles the end of the read loop. During teardown
// the disconnection is the expected outcome; otherwise the connection
// was lost and the loop retries.
func (c *Client) connectionClosed(err error) error {
	c.mu.Lock()
	c.conn = nil
	retry := c.retry
	c.retry = true
	c.mu.Unlock()

	if c.Stop().IsSet() {
		log.Info().Msg("websocket disconnected from server")
		return nil
	}

	if !retry {
		log.Error().Err(err).Msg("websocket connection lost")
	}
	if c.OnConnectionLost != nil {
		c.OnConnectionLost()
	}
	return nil
}

// receive dispatches one raw message to the handler of its type.
// Unparseable or unknown messages are logged and dropped, they never
// fail the worker.
func (c *Client) receive(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Error().Str("message", display(string(raw))).Msg("unexpected message from the server")
		return
	}

	c.mu.Lock()
	fn := c.handlers[msg.Type]
	c.mu.Unlock()
	if fn == nil {
		log.Error().Str("type", msg.Type).Msg("event of unknown type received")
		return
	}
	fn(msg.Data)
}

// abort interrupts the connection from outside the read loop by
// closing the underlying socket, which unblocks the pending read.
func (c *Client) abort() {
	log.Debug().Msg("aborting websocket connection")

	c.mu.Lock()
	conn := c.conn
	c.retry = false
	c.mu.Unlock()

	if conn != nil {
		errors.Log(conn.Close(), "failed to close websocket connection")
	}
}

func joinPath(base, elem string) string {
	if elem == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(elem, "/")
}

// display shortens a raw server message for logs, cut on rune
// boundaries.
func display(message string) string {
	const limit = 100
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
