package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zabari/chatspeaker/internal/message"
)

func TestRecordWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 60, 100)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	events := []message.Event{
		{Platform: message.Twitch, Username: "alice", Message: "hello", Timestamp: time.Now()},
		{Platform: message.Twitch, Username: "bob", Message: "world", Timestamp: time.Now()},
	}
	for _, ev := range events {
		if err := r.record(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one transcript file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "twitch_") || !strings.HasSuffix(name, ".jsonl") {
		t.Errorf("unexpected transcript name %q", name)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []message.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev message.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].Username != "alice" || got[1].Username != "bob" {
		t.Errorf("events out of order: %+v", got)
	}
}

func TestRecordSeparateFilesPerPlatform(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 60, 100)

	if err := r.record(message.Event{Platform: message.Twitch, Username: "a", Message: "x", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := r.record(message.Event{Platform: message.Kick, Username: "b", Message: "y", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected a file per platform, got %d", len(entries))
	}
}

func TestRotateBySize(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 60, 100)
	r.rotateBytes = 1 // force rotation on next check

	if err := r.record(message.Event{Platform: message.Twitch, Username: "a", Message: "x", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	files := make(chan string, 1)
	r.rotateStale(files)

	select {
	case path := <-files:
		if !strings.HasSuffix(path, ".jsonl") {
			t.Errorf("unexpected rotated path %q", path)
		}
	default:
		t.Fatal("expected rotated file on channel")
	}

	if len(r.transcripts) != 0 {
		t.Errorf("transcript should be closed after rotation")
	}

	// Next event opens a fresh file
	if err := r.record(message.Event{Platform: message.Twitch, Username: "a", Message: "y", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected 2 files after rotation, got %d", len(entries))
	}
}

func TestCloseAllAnnouncesFiles(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 60, 100)

	if err := r.record(message.Event{Platform: message.YouTube, Username: "a", Message: "x", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	files := make(chan string, 1)
	r.closeAll(files)

	select {
	case <-files:
	default:
		t.Fatal("expected closed transcript path on channel")
	}
}

func TestCloseAllFullQueueLeavesFile(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 60, 100)

	if err := r.record(message.Event{Platform: message.TikTok, Username: "a", Message: "x", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	files := make(chan string) // unbuffered, nobody reading
	r.closeAll(files)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("file should remain on disk when queue is full")
	}
}
