package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zabari/chatspeaker/internal/message"
)

type fakePipeline struct {
	status map[message.Platform]bool
}

func (f *fakePipeline) Status() map[message.Platform]bool { return f.status }

type fakeSpeech struct {
	pending   int
	cancelled int
}

func (f *fakeSpeech) Pending() int { return f.pending }
func (f *fakeSpeech) CancelAll()   { f.cancelled++ }

type fakeStore struct {
	events   []message.Event
	since    time.Time
	allCalls int
}

func (f *fakeStore) All() []message.Event {
	f.allCalls++
	return f.events
}
func (f *fakeStore) Since(t time.Time) []message.Event {
	f.since = t
	var out []message.Event
	for _, ev := range f.events {
		if ev.Timestamp.After(t) {
			out = append(out, ev)
		}
	}
	return out
}

func newTestServer() (*Server, *fakePipeline, *fakeSpeech, *fakeStore) {
	pipeline := &fakePipeline{status: map[message.Platform]bool{
		message.Twitch: true,
		message.Kick:   false,
	}}
	speech := &fakeSpeech{pending: 3}
	store := &fakeStore{}
	return New(":0", pipeline, speech, store), pipeline, speech, store
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Platforms[message.Twitch] || resp.Platforms[message.Kick] {
		t.Errorf("platforms = %v", resp.Platforms)
	}
	if resp.Pending != 3 {
		t.Errorf("pending = %d, want 3", resp.Pending)
	}
}

func TestMessages(t *testing.T) {
	s, _, _, store := newTestServer()
	now := time.Now()
	store.events = []message.Event{
		{ID: "1", Username: "a", Message: "old", Timestamp: now.Add(-time.Hour)},
		{ID: "2", Username: "b", Message: "new", Timestamp: now},
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var events []message.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestMessagesSince(t *testing.T) {
	s, _, _, store := newTestServer()
	now := time.Now()
	store.events = []message.Event{
		{ID: "1", Message: "old", Timestamp: now.Add(-time.Hour)},
		{ID: "2", Message: "new", Timestamp: now},
	}

	since := now.Add(-time.Minute).Format(time.RFC3339)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages?since="+since, nil))

	var events []message.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != "2" {
		t.Errorf("got %v, want only the recent event", events)
	}
	if store.allCalls != 0 {
		t.Errorf("All() called %d times on a since query, want 0", store.allCalls)
	}
}

func TestMessagesBadSince(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages?since=yesterday", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMessagesEmptyBufferReturnsArray(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	got := rec.Body.String()
	if got != "[]\n" {
		t.Errorf("empty buffer should encode as [], got %q", got)
	}
}

func TestCancel(t *testing.T) {
	s, _, speech, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/speech/cancel", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if speech.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", speech.cancelled)
	}
}

func TestCancelRequiresPost(t *testing.T) {
	s, _, speech, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/speech/cancel", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if speech.cancelled != 0 {
		t.Error("GET must not cancel the queue")
	}
}
