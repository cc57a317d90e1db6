package twitch

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

const connectTimeout = 10 * time.Second

// Connector listens to one Twitch channel over a persistent IRC
// connection and delivers normalized events into the shared channel.
type Connector struct {
	channel  string
	username string
	oauth    string
	events   chan<- message.Event

	client    *twitchirc.Client
	connected atomic.Bool
}

// New creates an anonymous (read-only) connector for a channel.
func New(channel string, events chan<- message.Event) *Connector {
	return &Connector{channel: channel, events: events}
}

// NewAuthenticated creates a connector with an authenticated identity.
// Messages sent by that identity are ignored on receipt.
func NewAuthenticated(channel, username, oauth string, events chan<- message.Event) *Connector {
	return &Connector{channel: channel, username: username, oauth: oauth, events: events}
}

func (c *Connector) Platform() message.Platform { return message.Twitch }

// Connect joins the channel and returns once the IRC handshake
// completes. Delivery continues in the background until Disconnect.
func (c *Connector) Connect(ctx context.Context) error {
	if c.username != "" {
		c.client = twitchirc.NewClient(c.username, c.oauth)
	} else {
		c.client = twitchirc.NewAnonymousClient()
	}

	ready := make(chan struct{})
	var readyOnce sync.Once
	errCh := make(chan error, 1)

	c.client.OnConnect(func() {
		log.Printf("twitch: connected to #%s", c.channel)
		c.connected.Store(true)
		readyOnce.Do(func() { close(ready) })
	})

	c.client.OnReconnectMessage(func(msg twitchirc.ReconnectMessage) {
		log.Println("twitch: server requested reconnect")
	})

	c.client.OnPrivateMessage(func(msg twitchirc.PrivateMessage) {
		c.handlePrivateMessage(ctx, msg)
	})

	c.client.Join(c.channel)

	go func() {
		err := c.client.Connect()
		c.connected.Store(false)
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
			// Post-handshake disconnect reasons are informational.
			log.Printf("twitch: connection closed: %v", err)
		}
	}()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		return &chat.ConnectionError{Platform: message.Twitch, Err: err}
	case <-ctx.Done():
		c.Disconnect()
		return &chat.ConnectionError{Platform: message.Twitch, Err: ctx.Err()}
	case <-time.After(connectTimeout):
		c.Disconnect()
		return &chat.ConnectionError{Platform: message.Twitch, Err: context.DeadlineExceeded}
	}
}

// handlePrivateMessage maps one IRC message to an event. Messages the
// authenticated identity sent itself are skipped.
func (c *Connector) handlePrivateMessage(ctx context.Context, msg twitchirc.PrivateMessage) {
	if c.username != "" && msg.User.Name == c.username {
		return
	}
	username := msg.User.DisplayName
	if username == "" {
		username = msg.User.Name
	}

	select {
	case c.events <- message.Event{
		Platform:  message.Twitch,
		Username:  username,
		Message:   msg.Message,
		Timestamp: time.Now().UTC(),
	}:
	case <-ctx.Done():
	}
}

// Disconnect closes the IRC connection. Safe to call when not connected.
func (c *Connector) Disconnect() {
	c.connected.Store(false)
	if c.client != nil {
		if err := c.client.Disconnect(); err != nil {
			log.Printf("twitch: disconnect: %v", err)
		}
	}
}

func (c *Connector) IsConnected() bool { return c.connected.Load() }
