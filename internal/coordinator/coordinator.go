package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zabari/chatspeaker/internal/buffer"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/filter"
	"github.com/zabari/chatspeaker/internal/message"
)

// Speaker is the slice of the TTS scheduler the coordinator needs.
type Speaker interface {
	Enqueue(username, message string)
	CancelAll()
}

// Coordinator owns the active adapter set and the ingestion pipeline:
// events arriving from any adapter are filtered, buffered, queued for
// speech, and fanned out to any registered sinks.
type Coordinator struct {
	adapters []chat.Adapter
	policy   filter.Policy
	buf      *buffer.Buffer
	speech   Speaker
	events   <-chan message.Event
	sinks    []chan<- message.Event

	stopped atomic.Bool
}

// New creates a coordinator over the shared event channel the adapters
// were constructed with.
func New(adapters []chat.Adapter, policy filter.Policy, buf *buffer.Buffer, speech Speaker, events <-chan message.Event) *Coordinator {
	return &Coordinator{
		adapters: adapters,
		policy:   policy,
		buf:      buf,
		speech:   speech,
		events:   events,
	}
}

// AddSink registers a channel that receives every stored event. Sinks
// must keep up; a full sink drops events rather than blocking
// ingestion. Register sinks before Start.
func (c *Coordinator) AddSink(sink chan<- message.Event) {
	c.sinks = append(c.sinks, sink)
}

// Start connects every adapter concurrently. A platform that fails to
// connect is logged and reported inactive without aborting the others;
// Start fails only when no platform could be connected. The caller's
// ctx is handed to each Connect unchanged: adapters derive their
// background delivery from it, so it must outlive Start.
func (c *Coordinator) Start(ctx context.Context) error {
	if len(c.adapters) == 0 {
		return fmt.Errorf("no platforms configured")
	}

	var connected atomic.Int32
	var g errgroup.Group
	for _, adapter := range c.adapters {
		adapter := adapter
		g.Go(func() error {
			if err := adapter.Connect(ctx); err != nil {
				log.Printf("coordinator: %s not active: %v", adapter.Platform(), err)
				return nil
			}
			connected.Add(1)
			return nil
		})
	}
	g.Wait()

	if connected.Load() == 0 {
		return fmt.Errorf("no platforms connected")
	}
	return nil
}

// Run consumes events until the context ends. Surviving events are
// assigned IDs by the buffer, queued for speech, and fanned out.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-c.events:
			if filter.Drop(evt.Username, evt.Message, c.policy) {
				continue
			}
			stored := c.buf.Add(evt)
			c.speech.Enqueue(stored.Username, stored.Message)
			for _, sink := range c.sinks {
				select {
				case sink <- stored:
				default:
					// A slow sink must not hold up ingestion.
				}
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Status reports each platform's last-known connection state.
func (c *Coordinator) Status() map[message.Platform]bool {
	status := make(map[message.Platform]bool, len(c.adapters))
	for _, adapter := range c.adapters {
		status[adapter.Platform()] = adapter.IsConnected()
	}
	return status
}

// Stop disconnects every adapter, cancels pending speech, and clears
// the message buffer. Idempotent.
func (c *Coordinator) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	for _, adapter := range c.adapters {
		adapter.Disconnect()
	}
	c.speech.CancelAll()
	c.buf.Clear()
}
