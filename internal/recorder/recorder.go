package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zabari/chatspeaker/internal/message"
)

// transcript is one open JSONL file for a single platform
type transcript struct {
	file     *os.File
	writer   *bufio.Writer
	openedAt time.Time
	bytes    int64
	platform message.Platform
	filename string
}

// Recorder appends chat events to per-platform JSONL transcript files,
// rotating them by age and size. Completed files are announced on a
// channel so the uploader can pick them up.
type Recorder struct {
	outputDir   string
	rotateAfter time.Duration
	rotateBytes int64

	transcripts map[message.Platform]*transcript
	seq         int
	mu          sync.Mutex
}

func New(outputDir string, rotateMinutes, rotateMegabytes int) *Recorder {
	return &Recorder{
		outputDir:   outputDir,
		rotateAfter: time.Duration(rotateMinutes) * time.Minute,
		rotateBytes: int64(rotateMegabytes) * 1024 * 1024,
		transcripts: make(map[message.Platform]*transcript),
	}
}

// Start consumes events until ctx is cancelled. Rotated and final file
// paths are sent on files; a full channel is skipped, the files remain
// on disk for the uploader's startup scan.
func (r *Recorder) Start(ctx context.Context, events <-chan message.Event, files chan<- string) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.closeAll(files)
				return nil
			}
			if err := r.record(ev); err != nil {
				log.Printf("recorder: write failed: %v", err)
			}

		case <-ticker.C:
			r.rotateStale(files)

		case <-ctx.Done():
			log.Println("recorder: shutting down, closing transcripts")
			r.closeAll(files)
			return ctx.Err()
		}
	}
}

func (r *Recorder) record(ev message.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr := r.transcripts[ev.Platform]
	if tr == nil {
		var err error
		tr, err = r.open(ev.Platform)
		if err != nil {
			return err
		}
		r.transcripts[ev.Platform] = tr
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	n, err := tr.writer.Write(line)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	tr.bytes += int64(n)
	if err := tr.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	tr.bytes++

	return tr.writer.Flush()
}

func (r *Recorder) open(platform message.Platform) (*transcript, error) {
	r.seq++
	stamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%03d.jsonl", platform, stamp, r.seq)

	file, err := os.Create(filepath.Join(r.outputDir, filename))
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	log.Printf("recorder: opened %s", filename)
	return &transcript{
		file:     file,
		writer:   bufio.NewWriter(file),
		openedAt: time.Now(),
		platform: platform,
		filename: filename,
	}, nil
}

func (r *Recorder) rotateStale(files chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for platform, tr := range r.transcripts {
		if time.Since(tr.openedAt) < r.rotateAfter && tr.bytes < r.rotateBytes {
			continue
		}
		log.Printf("recorder: rotating %s", tr.filename)
		r.finish(tr, files)
		delete(r.transcripts, platform)
	}
}

func (r *Recorder) closeAll(files chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for platform, tr := range r.transcripts {
		r.finish(tr, files)
		delete(r.transcripts, platform)
	}
}

// finish flushes and closes a transcript, then offers its path for
// upload. Caller holds the lock.
func (r *Recorder) finish(tr *transcript, files chan<- string) {
	if err := tr.writer.Flush(); err != nil {
		log.Printf("recorder: flush %s: %v", tr.filename, err)
	}
	if err := tr.file.Close(); err != nil {
		log.Printf("recorder: close %s: %v", tr.filename, err)
	}

	path := filepath.Join(r.outputDir, tr.filename)
	select {
	case files <- path:
	default:
		log.Printf("recorder: upload queue full, leaving %s for startup scan", tr.filename)
	}
}
