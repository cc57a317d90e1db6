package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

const (
	defaultVideosURL   = "https://www.googleapis.com/youtube/v3/videos"
	defaultLiveChatURL = "https://www.googleapis.com/youtube/v3/liveChat/messages"

	// The liveChat API redelivers messages across pagination, so recent
	// message IDs are tracked in a bounded set.
	dedupeLimit = 1000

	defaultPollingRate = 3 * time.Second
)

// Connector polls the YouTube Data API v3 live chat for one video and
// delivers normalized events into the shared channel.
type Connector struct {
	apiKey  string
	videoID string
	events  chan<- message.Event

	httpClient  *http.Client
	videosURL   string
	liveChatURL string

	liveChatID  string
	pageToken   string
	pollingRate time.Duration
	seen        *lru.Cache[string, struct{}]

	connected atomic.Bool
	cancel    context.CancelFunc
}

// New creates a connector for a video's live chat. The API key is
// required; Connect fails fast without one.
func New(apiKey, videoID string, events chan<- message.Event) *Connector {
	seen, _ := lru.New[string, struct{}](dedupeLimit)
	return &Connector{
		apiKey:      apiKey,
		videoID:     videoID,
		events:      events,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		videosURL:   defaultVideosURL,
		liveChatURL: defaultLiveChatURL,
		pollingRate: defaultPollingRate,
		seen:        seen,
	}
}

func (c *Connector) Platform() message.Platform { return message.YouTube }

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([^&]+)`),
	regexp.MustCompile(`youtu\.be/([^?]+)`),
	regexp.MustCompile(`embed/([^?]+)`),
}

// ExtractVideoID accepts a raw video ID or any common YouTube URL form
// (watch, short link, embed, live chat popout) and returns the video ID.
func ExtractVideoID(raw string) (string, error) {
	if !regexp.MustCompile(`^https?://`).MatchString(raw) {
		return raw, nil
	}
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract video ID from %q", raw)
}

// videoResponse is the videos.list API response, reduced to the live
// streaming details the connector needs.
type videoResponse struct {
	Items []struct {
		LiveStreamingDetails struct {
			ActiveLiveChatID string `json:"activeLiveChatId"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
}

// liveChatResponse is the liveChatMessages.list API response.
type liveChatResponse struct {
	NextPageToken         string `json:"nextPageToken"`
	PollingIntervalMillis int    `json:"pollingIntervalMillis"`
	Items                 []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt    string `json:"publishedAt"`
			DisplayMessage string `json:"displayMessage"`
		} `json:"snippet"`
		AuthorDetails struct {
			DisplayName string `json:"displayName"`
		} `json:"authorDetails"`
	} `json:"items"`
}

// Connect resolves the video's active live chat ID and starts the poll
// loop. The server dictates the polling interval; the loop honors it as
// it changes between responses.
func (c *Connector) Connect(ctx context.Context) error {
	if c.apiKey == "" {
		return &chat.ConnectionError{Platform: message.YouTube, Err: chat.ErrMissingCredential}
	}

	if err := c.fetchLiveChatID(ctx); err != nil {
		return &chat.ConnectionError{Platform: message.YouTube, Err: err}
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.connected.Store(true)
	log.Printf("youtube: connected to live chat for video %s", c.videoID)

	go c.pollLoop(pollCtx)
	return nil
}

func (c *Connector) pollLoop(ctx context.Context) {
	defer c.connected.Store(false)

	if err := c.fetchMessages(ctx); err != nil && ctx.Err() == nil {
		log.Printf("youtube: fetch error: %v", err)
	}

	timer := time.NewTimer(c.pollingRate)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := c.fetchMessages(ctx); err != nil && ctx.Err() == nil {
				log.Printf("youtube: fetch error: %v", err)
			}
			timer.Reset(c.pollingRate)
		}
	}
}

func (c *Connector) fetchLiveChatID(ctx context.Context) error {
	params := url.Values{}
	params.Set("part", "liveStreamingDetails")
	params.Set("id", c.videoID)
	params.Set("key", c.apiKey)

	var videoResp videoResponse
	if err := c.getJSON(ctx, c.videosURL, params, &videoResp); err != nil {
		return err
	}

	if len(videoResp.Items) == 0 {
		return fmt.Errorf("video %s: %w", c.videoID, chat.ErrNotLive)
	}

	c.liveChatID = videoResp.Items[0].LiveStreamingDetails.ActiveLiveChatID
	if c.liveChatID == "" {
		return fmt.Errorf("video %s has no active live chat: %w", c.videoID, chat.ErrNotLive)
	}
	return nil
}

func (c *Connector) fetchMessages(ctx context.Context) error {
	params := url.Values{}
	params.Set("part", "snippet,authorDetails")
	params.Set("liveChatId", c.liveChatID)
	params.Set("key", c.apiKey)
	if c.pageToken != "" {
		params.Set("pageToken", c.pageToken)
	}

	var chatResp liveChatResponse
	if err := c.getJSON(ctx, c.liveChatURL, params, &chatResp); err != nil {
		return err
	}

	c.pageToken = chatResp.NextPageToken
	if chatResp.PollingIntervalMillis > 0 {
		c.pollingRate = time.Duration(chatResp.PollingIntervalMillis) * time.Millisecond
	}

	for _, item := range chatResp.Items {
		if c.seen.Contains(item.ID) {
			continue
		}
		c.seen.Add(item.ID, struct{}{})

		if item.AuthorDetails.DisplayName == "" || item.Snippet.DisplayMessage == "" {
			continue
		}

		timestamp, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if timestamp.IsZero() {
			timestamp = time.Now().UTC()
		}

		select {
		case c.events <- message.Event{
			Platform:  message.YouTube,
			Username:  item.AuthorDetails.DisplayName,
			Message:   item.Snippet.DisplayMessage,
			Timestamp: timestamp,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Connector) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Disconnect stops the poll loop and releases dedupe state. Safe to
// call when not connected.
func (c *Connector) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connected.Store(false)
	c.seen.Purge()
}

func (c *Connector) IsConnected() bool { return c.connected.Load() }
