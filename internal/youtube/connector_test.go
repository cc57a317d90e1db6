package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch url with extra params", "https://www.youtube.com/watch?feature=x&v=abc123&t=10", "abc123", false},
		{"short url", "https://youtu.be/abc123?t=10", "abc123", false},
		{"embed url", "https://www.youtube.com/embed/abc123", "abc123", false},
		{"unrecognized url", "https://example.com/video", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractVideoID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConnectRequiresAPIKey(t *testing.T) {
	c := New("", "video-123", make(chan message.Event, 1))
	err := c.Connect(context.Background())
	if !errors.Is(err, chat.ErrMissingCredential) {
		t.Fatalf("Connect() error = %v, want ErrMissingCredential", err)
	}

	var connErr *chat.ConnectionError
	if !errors.As(err, &connErr) || connErr.Platform != message.YouTube {
		t.Errorf("expected platform-tagged ConnectionError, got %v", err)
	}
}

func TestConnectVideoNotLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}))
	defer server.Close()

	c := New("api-key", "video-123", make(chan message.Event, 1))
	c.videosURL = server.URL

	err := c.Connect(context.Background())
	if !errors.Is(err, chat.ErrNotLive) {
		t.Fatalf("Connect() error = %v, want ErrNotLive", err)
	}
	if c.IsConnected() {
		t.Error("adapter must not report connected after a failed connect")
	}
}

func TestFetchLiveChatID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "video-123" {
			t.Errorf("id param = %q", got)
		}
		if got := r.URL.Query().Get("key"); got != "api-key" {
			t.Errorf("key param = %q", got)
		}
		w.Write([]byte(`{"items":[{"liveStreamingDetails":{"activeLiveChatId":"chat-abc"}}]}`))
	}))
	defer server.Close()

	c := New("api-key", "video-123", make(chan message.Event, 1))
	c.videosURL = server.URL

	if err := c.fetchLiveChatID(context.Background()); err != nil {
		t.Fatalf("fetchLiveChatID() error: %v", err)
	}
	if c.liveChatID != "chat-abc" {
		t.Errorf("liveChatID = %q, want %q", c.liveChatID, "chat-abc")
	}
}

func chatPayload(ids ...string) string {
	type item struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt    string `json:"publishedAt"`
			DisplayMessage string `json:"displayMessage"`
		} `json:"snippet"`
		AuthorDetails struct {
			DisplayName string `json:"displayName"`
		} `json:"authorDetails"`
	}

	var items []item
	for _, id := range ids {
		it := item{ID: id}
		it.Snippet.PublishedAt = "2025-06-15T10:30:00Z"
		it.Snippet.DisplayMessage = "hello " + id
		it.AuthorDetails.DisplayName = "viewer"
		items = append(items, it)
	}

	payload, _ := json.Marshal(map[string]any{
		"nextPageToken":         "token-1",
		"pollingIntervalMillis": 5000,
		"items":                 items,
	})
	return string(payload)
}

func TestFetchMessagesDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatPayload("msg-1", "msg-2")))
	}))
	defer server.Close()

	events := make(chan message.Event, 10)
	c := New("api-key", "video-123", events)
	c.liveChatURL = server.URL
	c.liveChatID = "chat-abc"

	// The same IDs delivered across two polls must emit only once.
	for i := 0; i < 2; i++ {
		if err := c.fetchMessages(context.Background()); err != nil {
			t.Fatalf("fetchMessages() error: %v", err)
		}
	}
	close(events)

	var got []message.Event
	for evt := range events {
		got = append(got, evt)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events after replay, got %d", len(got))
	}
	if got[0].Message != "hello msg-1" || got[1].Message != "hello msg-2" {
		t.Errorf("unexpected events: %v", got)
	}
	if got[0].Platform != message.YouTube {
		t.Errorf("platform = %v", got[0].Platform)
	}

	wantTime := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	if !got[0].Timestamp.Equal(wantTime) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, wantTime)
	}
}

func TestFetchMessagesHonorsServerInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatPayload()))
	}))
	defer server.Close()

	c := New("api-key", "video-123", make(chan message.Event, 1))
	c.liveChatURL = server.URL
	c.liveChatID = "chat-abc"

	if err := c.fetchMessages(context.Background()); err != nil {
		t.Fatalf("fetchMessages() error: %v", err)
	}
	if c.pollingRate != 5*time.Second {
		t.Errorf("pollingRate = %v, want 5s", c.pollingRate)
	}
	if c.pageToken != "token-1" {
		t.Errorf("pageToken = %q, want %q", c.pageToken, "token-1")
	}
}

func TestFetchMessagesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New("api-key", "video-123", make(chan message.Event, 1))
	c.liveChatURL = server.URL
	c.liveChatID = "chat-abc"

	if err := c.fetchMessages(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestDisconnectStopsPolling(t *testing.T) {
	polls := make(chan struct{}, 100)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"liveStreamingDetails":{"activeLiveChatId":"chat-abc"}}]}`))
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		select {
		case polls <- struct{}{}:
		default:
		}
		w.Write([]byte(`{"items":[],"pollingIntervalMillis":10}`))
	})

	c := New("api-key", "video-123", make(chan message.Event, 1))
	c.videosURL = server.URL + "/videos"
	c.liveChatURL = server.URL + "/chat"

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("expected connected after Connect")
	}

	<-polls
	c.Disconnect()
	// Idempotent: a second call is a no-op, not an error.
	c.Disconnect()

	if c.IsConnected() {
		t.Error("expected disconnected after Disconnect")
	}

	// Drain anything in flight, then verify polling has stopped.
	time.Sleep(50 * time.Millisecond)
	for len(polls) > 0 {
		<-polls
	}
	time.Sleep(50 * time.Millisecond)
	if len(polls) != 0 {
		t.Error("poll loop still running after Disconnect")
	}
}
