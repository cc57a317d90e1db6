package kick

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/message"
)

func TestResolveChatroomID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/somecaster" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser User-Agent header")
		}
		w.Write([]byte(`{"id":42,"slug":"somecaster","chatroom":{"id":12345}}`))
	}))
	defer server.Close()

	id, err := ResolveChatroomID(context.Background(), server.Client(), server.URL, "somecaster")
	if err != nil {
		t.Fatalf("ResolveChatroomID() error: %v", err)
	}
	if id != 12345 {
		t.Errorf("chatroom ID = %d, want 12345", id)
	}
}

func TestResolveChatroomIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := ResolveChatroomID(context.Background(), server.Client(), server.URL, "nosuch")
	if !errors.Is(err, chat.ErrChannelNotFound) {
		t.Fatalf("error = %v, want ErrChannelNotFound", err)
	}
}

func TestResolveChatroomIDMissingChatroom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":42,"slug":"somecaster","chatroom":{}}`))
	}))
	defer server.Close()

	_, err := ResolveChatroomID(context.Background(), server.Client(), server.URL, "somecaster")
	if !errors.Is(err, chat.ErrChannelNotFound) {
		t.Fatalf("error = %v, want ErrChannelNotFound", err)
	}
}

func TestConnectResolutionFailureIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New("nosuch", make(chan message.Event, 1))
	c.apiBase = server.URL
	c.httpClient = server.Client()

	err := c.Connect(context.Background())

	var connErr *chat.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *chat.ConnectionError", err)
	}
	if connErr.Platform != message.Kick {
		t.Errorf("platform = %v, want kick", connErr.Platform)
	}
	if c.IsConnected() {
		t.Error("adapter must not report connected after a failed connect")
	}

	// Disconnect after a failed connect is a no-op.
	c.Disconnect()
}
