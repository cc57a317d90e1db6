package tts

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zabari/chatspeaker/internal/language"
)

// Mode selects how queued items are synthesized.
type Mode string

const (
	// ModeRemote speaks everything through the remote speaker.
	ModeRemote Mode = "remote"
	// ModeLocal speaks everything through the local speaker.
	ModeLocal Mode = "local"
	// ModeHybrid routes each segment by detected language: English to
	// the remote speaker, Hebrew to the local one.
	ModeHybrid Mode = "hybrid"
)

const (
	defaultSegmentDelay = 100 * time.Millisecond
	defaultItemDelay    = 500 * time.Millisecond

	bridgeWord = "says:"
)

// Options configure a Scheduler.
type Options struct {
	Mode             Mode
	AnnounceUsername bool

	// Voice is the local voice for English segments, the bridge word,
	// and single-mode local speech. HebrewVoice is the local voice for
	// Hebrew segments in hybrid mode.
	Voice       string
	HebrewVoice string

	// SegmentDelay separates segments within one item; ItemDelay
	// separates queue items. Both keep the audio engines from being
	// issued overlapping work.
	SegmentDelay time.Duration
	ItemDelay    time.Duration
}

type queueItem struct {
	Username string
	Message  string
}

// Scheduler serializes speech across the two synthesis backends: a
// single consumer drains a FIFO queue, speaking one item at a time.
// The backends misbehave under concurrent calls, so at most one
// utterance is ever active.
type Scheduler struct {
	local  LocalSpeaker
	remote RemoteSpeaker
	opts   Options

	mu         sync.Mutex
	queue      []queueItem
	processing bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates an idle scheduler. The local speaker may be nil
// in ModeRemote and the remote speaker may be nil in ModeLocal; hybrid
// mode needs both.
func NewScheduler(local LocalSpeaker, remote RemoteSpeaker, opts Options) *Scheduler {
	if opts.SegmentDelay <= 0 {
		opts.SegmentDelay = defaultSegmentDelay
	}
	if opts.ItemDelay <= 0 {
		opts.ItemDelay = defaultItemDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		local:  local,
		remote: remote,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue appends an item and starts draining if the scheduler is
// idle. Never blocks.
func (s *Scheduler) Enqueue(username, message string) {
	s.mu.Lock()
	s.queue = append(s.queue, queueItem{Username: username, Message: message})
	start := !s.processing
	if start {
		s.processing = true
	}
	ctx := s.ctx
	s.mu.Unlock()

	if start {
		go s.drain(ctx)
	}
}

// Pending returns the number of items waiting to be spoken.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CancelAll discards all queued and in-flight work: the queue is
// cleared, the current drain cycle's context is cancelled so in-flight
// remote audio is discarded, and the local speaker is told to stop.
// A later Enqueue starts a fresh cycle.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	s.queue = nil
	s.processing = false
	cancel := s.cancel
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	cancel()
	if s.local != nil {
		s.local.Stop()
	}
}

// drain is the single consumer loop. ctx belongs to one cancellation
// generation; CancelAll retires it and the loop exits on its next
// check.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.speakItem(ctx, item)

		select {
		case <-time.After(s.opts.ItemDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) speakItem(ctx context.Context, item queueItem) {
	if s.opts.Mode == ModeHybrid {
		s.speakHybrid(ctx, item)
		return
	}
	s.speakSingle(ctx, item)
}

func (s *Scheduler) speakSingle(ctx context.Context, item queueItem) {
	text := item.Message
	if s.opts.AnnounceUsername {
		text = item.Username + " " + bridgeWord + " " + item.Message
	}

	var err error
	if s.opts.Mode == ModeLocal {
		err = s.local.Speak(ctx, text, s.opts.Voice)
	} else {
		err = s.remote.Speak(ctx, text)
	}
	s.logSynthesisError(ctx, err)
}

func (s *Scheduler) speakHybrid(ctx context.Context, item queueItem) {
	usernameLang := language.Classify(item.Username)
	messageLang := language.Classify(item.Message)

	// All-English items go to the remote speaker as one utterance,
	// avoiding a pointless backend switch.
	if usernameLang == language.English && messageLang == language.English {
		text := item.Message
		if s.opts.AnnounceUsername {
			text = item.Username + " " + bridgeWord + " " + item.Message
		}
		s.logSynthesisError(ctx, s.remote.Speak(ctx, text))
		return
	}

	if s.opts.AnnounceUsername {
		s.speakSegment(ctx, item.Username, usernameLang)
		if !s.pause(ctx) {
			return
		}
		// The bridge word always goes through the local speaker.
		s.logSynthesisError(ctx, s.local.Speak(ctx, bridgeWord, s.opts.Voice))
		if !s.pause(ctx) {
			return
		}
	}
	s.speakSegment(ctx, item.Message, messageLang)
}

func (s *Scheduler) speakSegment(ctx context.Context, text string, lang language.Lang) {
	var err error
	if lang == language.Hebrew {
		err = s.local.Speak(ctx, text, s.opts.HebrewVoice)
	} else {
		err = s.remote.Speak(ctx, text)
	}
	s.logSynthesisError(ctx, err)
}

// logSynthesisError records a backend failure and otherwise treats the
// segment as complete so the queue keeps moving.
func (s *Scheduler) logSynthesisError(ctx context.Context, err error) {
	if err != nil && ctx.Err() == nil {
		log.Printf("tts: synthesis failed: %v", err)
	}
}

// pause waits the inter-segment delay; false means the cycle was
// cancelled.
func (s *Scheduler) pause(ctx context.Context) bool {
	select {
	case <-time.After(s.opts.SegmentDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
