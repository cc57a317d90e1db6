package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

const (
	// The observed chat surface is re-read on a fixed cadence; new
	// entries are recognized by their platform-native index.
	pollInterval = 3 * time.Second

	dedupeLimit = 1000
)

// watchRequest asks the observer bridge to open a live page using a
// pre-established session.
type watchRequest struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	Session  json.RawMessage `json:"session"`
}

// snapshotRequest asks the bridge for the currently visible messages.
type snapshotRequest struct {
	Type string `json:"type"`
}

// feedEntry is one visible chat row, keyed by its stable DOM index.
type feedEntry struct {
	Index    string `json:"index"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// bridgeResponse is any message from the observer bridge.
type bridgeResponse struct {
	Type    string      `json:"type"`
	Error   string      `json:"error,omitempty"`
	Entries []feedEntry `json:"entries,omitempty"`
}

// Connector watches one TikTok live chat through an external
// DOM-observation bridge reached over a websocket. It requires a
// session snapshot produced by a separate login flow; without one,
// Connect fails fast. The initial snapshot seeds the dedupe set so
// pre-existing history is never re-emitted.
type Connector struct {
	username    string
	sessionPath string
	bridgeURL   string
	events      chan<- message.Event

	pollEvery time.Duration
	conn      *websocket.Conn
	seen      *lru.Cache[string, struct{}]
	cancel    context.CancelFunc
	connected atomic.Bool
}

// New creates a connector for a TikTok username. sessionPath points at
// the session file written by the login flow; bridgeURL is the observer
// bridge websocket endpoint.
func New(username, sessionPath, bridgeURL string, events chan<- message.Event) *Connector {
	seen, _ := lru.New[string, struct{}](dedupeLimit)
	return &Connector{
		username:    username,
		sessionPath: sessionPath,
		bridgeURL:   bridgeURL,
		events:      events,
		pollEvery:   pollInterval,
		seen:        seen,
	}
}

func (c *Connector) Platform() message.Platform { return message.TikTok }

// Connect loads the session, opens the bridge, waits for the live page
// to be ready, and seeds the dedupe set from the initial snapshot
// before starting the fixed-interval poll loop.
func (c *Connector) Connect(ctx context.Context) error {
	session, err := c.loadSession()
	if err != nil {
		return &chat.ConnectionError{Platform: message.TikTok, Err: err}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.bridgeURL, nil)
	if err != nil {
		return &chat.ConnectionError{Platform: message.TikTok, Err: fmt.Errorf("dial bridge: %w", err)}
	}

	if err := conn.WriteJSON(watchRequest{Type: "watch", Username: c.username, Session: session}); err != nil {
		conn.Close()
		return &chat.ConnectionError{Platform: message.TikTok, Err: fmt.Errorf("send watch request: %w", err)}
	}

	var ready bridgeResponse
	if err := conn.ReadJSON(&ready); err != nil {
		conn.Close()
		return &chat.ConnectionError{Platform: message.TikTok, Err: fmt.Errorf("await ready: %w", err)}
	}
	if ready.Type != "ready" {
		conn.Close()
		return &chat.ConnectionError{Platform: message.TikTok, Err: fmt.Errorf("bridge refused watch: %s", ready.Error)}
	}

	// Seed: everything already on screen is history, not new chat.
	initial, err := fetchSnapshot(conn)
	if err != nil {
		conn.Close()
		return &chat.ConnectionError{Platform: message.TikTok, Err: fmt.Errorf("initial snapshot: %w", err)}
	}
	for _, entry := range initial {
		c.seen.Add(entry.Index, struct{}{})
	}
	log.Printf("tiktok: skipping %d existing messages for @%s", len(initial), c.username)

	c.conn = conn
	c.connected.Store(true)
	log.Printf("tiktok: connected to @%s", c.username)

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.pollLoop(pollCtx, conn)

	return nil
}

func (c *Connector) loadSession() (json.RawMessage, error) {
	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", c.sessionPath, chat.ErrSessionMissing)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("session file %s is not valid JSON: %w", c.sessionPath, chat.ErrSessionMissing)
	}
	return json.RawMessage(data), nil
}

// errBadFrame marks a malformed or out-of-band bridge frame. The
// transport is still healthy; the poll loop skips the cycle instead of
// exiting.
var errBadFrame = errors.New("bad bridge frame")

func fetchSnapshot(conn *websocket.Conn) ([]feedEntry, error) {
	if err := conn.WriteJSON(snapshotRequest{Type: "snapshot"}); err != nil {
		return nil, err
	}
	var resp bridgeResponse
	if err := conn.ReadJSON(&resp); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", errBadFrame, err)
		}
		return nil, err
	}
	if resp.Type != "snapshot" {
		return nil, fmt.Errorf("%w: unexpected type %q: %s", errBadFrame, resp.Type, resp.Error)
	}
	return resp.Entries, nil
}

func (c *Connector) pollLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.connected.Store(false)

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := fetchSnapshot(conn)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, errBadFrame) {
					log.Printf("tiktok: skipping poll: %v", err)
					continue
				}
				log.Printf("tiktok: poll error: %v", err)
				return
			}
			c.emitNew(ctx, entries)
		}
	}
}

func (c *Connector) emitNew(ctx context.Context, entries []feedEntry) {
	for _, entry := range entries {
		if c.seen.Contains(entry.Index) {
			continue
		}
		c.seen.Add(entry.Index, struct{}{})

		if entry.Username == "" || entry.Message == "" {
			continue
		}

		select {
		case c.events <- message.Event{
			Platform:  message.TikTok,
			Username:  entry.Username,
			Message:   entry.Message,
			Timestamp: time.Now().UTC(),
		}:
		case <-ctx.Done():
			return
		}
	}
}

// Disconnect stops polling and closes the bridge connection. Safe to
// call when not connected.
func (c *Connector) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connected.Store(false)
	if c.conn != nil {
		c.conn.Close()
	}
	c.seen.Purge()
}

func (c *Connector) IsConnected() bool { return c.connected.Load() }
