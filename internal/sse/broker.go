// Package sse implements a Server-Sent Events broker that pushes post and
// index changes to connected browsers.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypePostCreated  = "post.created"
	TypePostUpdated  = "post.updated"
	TypePostDeleted  = "post.deleted"
	TypeIndexRebuilt = "index.rebuilt"
	TypeIndexFailed  = "index.failed"
)

// DefaultThrottle is the minimum spacing between index.rebuilt events.
const DefaultThrottle = 2 * time.Second

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Rebuilt is the payload of an index.rebuilt event.
type Rebuilt struct {
	BuildID string `json:"build_id"`
	Count   int    `json:"count"`
}

type postEvent struct {
	kind string
	file string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set and the rebuild
// throttle state. Public methods talk to it over channels.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	postCh        chan postEvent
	rebuiltCh     chan Rebuilt
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one index.rebuilt event per
// throttle interval. A rebuild reported inside the window is held back and
// sent, with the latest payload, when the window closes.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}

	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		postCh:        make(chan postEvent, 256),
		rebuiltCh:     make(chan Rebuilt, 16),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastRebuilt time.Time
		held        *Rebuilt
		heldTimer   *time.Timer
		heldCh      <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client, drop
			}
		}
	}

	emitRebuilt := func(r Rebuilt) {
		lastRebuilt = time.Now()
		broadcast(Event{Type: TypeIndexRebuilt, Data: r})
	}

	for {
		select {
		case <-b.stopCh:
			if heldTimer != nil {
				heldTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.postCh:
			typ := postEventType(ev.kind)
			if typ == "" {
				continue
			}
			broadcast(Event{Type: typ, Data: map[string]string{"file": ev.file}})

		case r := <-b.rebuiltCh:
			wait := b.throttle - time.Since(lastRebuilt)
			if wait <= 0 && held == nil {
				emitRebuilt(r)
				continue
			}
			held = &r
			if heldTimer == nil {
				heldTimer = time.NewTimer(wait)
				heldCh = heldTimer.C
			}

		case <-heldCh:
			heldTimer, heldCh = nil, nil
			if held != nil {
				emitRebuilt(*held)
				held = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func postEventType(kind string) string {
	switch kind {
	case "created":
		return TypePostCreated
	case "updated":
		return TypePostUpdated
	case "deleted":
		return TypePostDeleted
	}
	return ""
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishPostEvent broadcasts a post.created, post.updated or post.deleted
// event for file. Unknown kinds are ignored.
func (b *Broker) PublishPostEvent(kind, file string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.postCh <- postEvent{kind: kind, file: file}:
	case <-b.stopped:
	}
}

// PublishRebuilt reports a finished index build, subject to the throttle.
func (b *Broker) PublishRebuilt(buildID string, count int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.rebuiltCh <- Rebuilt{BuildID: buildID, Count: count}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
