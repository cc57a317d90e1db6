package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	kickchat "github.com/johanvandegriff/kick-chat-wrapper"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

const defaultAPIBase = "https://kick.com/api/v2"

// channelResponse is the Kick channels API response.
type channelResponse struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	Chatroom struct {
		ID int `json:"id"`
	} `json:"chatroom"`
}

// Connector subscribes to one Kick channel's chatroom over the managed
// pub/sub websocket and delivers normalized events into the shared
// channel. The chatroom ID is resolved with a single HTTP lookup unless
// pre-configured.
type Connector struct {
	channel    string
	chatroomID int
	events     chan<- message.Event

	apiBase    string
	httpClient *http.Client

	client    *kickchat.Client
	cancel    context.CancelFunc
	connected atomic.Bool
}

// New creates a connector for a channel slug.
func New(channel string, events chan<- message.Event) *Connector {
	return &Connector{
		channel:    channel,
		events:     events,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithChatroomID creates a connector with a pre-resolved chatroom ID,
// skipping the API lookup on connect.
func NewWithChatroomID(channel string, chatroomID int, events chan<- message.Event) *Connector {
	c := New(channel, events)
	c.chatroomID = chatroomID
	return c
}

func (c *Connector) Platform() message.Platform { return message.Kick }

// Connect resolves the chatroom ID if needed, opens the pub/sub socket,
// and joins the chatroom. Delivery continues in the background until
// Disconnect. Connection-state transitions are logged; retry is a
// caller concern.
func (c *Connector) Connect(ctx context.Context) error {
	if c.chatroomID == 0 {
		chatroomID, err := ResolveChatroomID(ctx, c.httpClient, c.apiBase, c.channel)
		if err != nil {
			return &chat.ConnectionError{Platform: message.Kick, Err: err}
		}
		c.chatroomID = chatroomID
		log.Printf("kick: resolved channel %s -> chatroom %d", c.channel, c.chatroomID)
	}

	client, err := kickchat.NewClient()
	if err != nil {
		return &chat.ConnectionError{Platform: message.Kick, Err: fmt.Errorf("create client: %w", err)}
	}

	if err := client.JoinChannelByID(c.chatroomID); err != nil {
		client.Close()
		return &chat.ConnectionError{Platform: message.Kick, Err: fmt.Errorf("join chatroom %d: %w", c.chatroomID, err)}
	}

	c.client = client
	c.connected.Store(true)
	log.Printf("kick: connected to channel %s", c.channel)

	listenCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.listen(listenCtx, client.ListenForMessages())

	return nil
}

func (c *Connector) listen(ctx context.Context, messages <-chan kickchat.ChatMessage) {
	defer c.connected.Store(false)

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				log.Println("kick: message channel closed")
				return
			}
			if msg.Sender.Username == "" || msg.Content == "" {
				continue
			}

			timestamp := msg.CreatedAt
			if timestamp.IsZero() {
				timestamp = time.Now().UTC()
			}

			select {
			case c.events <- message.Event{
				Platform:  message.Kick,
				Username:  msg.Sender.Username,
				Message:   msg.Content,
				Timestamp: timestamp,
			}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// ResolveChatroomID looks up a channel slug's numeric chatroom ID via
// the Kick API. The request carries browser headers since the API sits
// behind CloudFlare.
func ResolveChatroomID(ctx context.Context, client *http.Client, apiBase, channel string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/channels/%s", apiBase, channel), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://kick.com/")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("channel %s: %w", channel, chat.ErrChannelNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var channelInfo channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&channelInfo); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if channelInfo.Chatroom.ID == 0 {
		return 0, fmt.Errorf("channel %s has no chatroom: %w", channel, chat.ErrChannelNotFound)
	}

	return channelInfo.Chatroom.ID, nil
}

// Disconnect closes the pub/sub socket. Safe to call when not connected.
func (c *Connector) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connected.Store(false)
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Connector) IsConnected() bool { return c.connected.Load() }
