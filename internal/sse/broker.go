// Package sse implements a Server-Sent Events broker that tells editor
// clients when the tree or referenced sources change.
//
// Events:
//
//	file.created|file.updated|file.deleted  {"path": "src/main.c"}
//	tree.synced                             {}
//	buffers.stale                           {"paths": ["/work/reqs/REQ001.yml"]}
//
// A client may subscribe with a set of buffer paths; it then only receives
// buffers.stale for those paths, plus every file and tree event.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast. A non-empty Paths limits
// delivery to clients watching at least one of them.
type Event struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	Paths []string    `json:"-"`
}

type client struct {
	ch    chan []byte
	paths map[string]struct{} // empty: everything
}

func (c *client) wants(paths []string) []string {
	if len(c.paths) == 0 {
		return paths
	}
	var out []string
	for _, p := range paths {
		if _, ok := c.paths[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

type fileEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients and the pending stale set). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	staleDelay time.Duration

	subscribeCh   chan *client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fileEventCh   chan fileEventReq
	staleCh       chan []string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Stale buffer paths reported within
// staleDelay of each other are coalesced into one buffers.stale event.
func NewBroker(staleDelay time.Duration) *Broker {
	if staleDelay <= 0 {
		staleDelay = time.Second
	}

	b := &Broker{
		staleDelay:    staleDelay,
		subscribeCh:   make(chan *client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fileEventCh:   make(chan fileEventReq, 256),
		staleCh:       make(chan []string, 64),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func frame(typ string, data any) ([]byte, bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", typ, payload)), true
}

func send(c *client, raw []byte) {
	select {
	case c.ch <- raw:
	default:
		// Client buffer full; skip to avoid blocking broker loop.
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	pending := make(map[string]struct{})
	var flush <-chan time.Time

	broadcast := func(event Event) {
		raw, ok := frame(event.Type, event.Data)
		if !ok {
			return
		}
		for _, c := range clients {
			if len(event.Paths) > 0 && len(c.wants(event.Paths)) == 0 {
				continue
			}
			send(c, raw)
		}
	}

	// Each client sees only the stale paths it asked for.
	flushStale := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(pending)
		for _, c := range clients {
			mine := c.wants(paths)
			if len(mine) == 0 {
				continue
			}
			if raw, ok := frame("buffers.stale", map[string][]string{"paths": mine}); ok {
				send(c, raw)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.fileEventCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "file." + req.kind, Data: map[string]string{"path": req.path}})
			case "synced":
				broadcast(Event{Type: "tree.synced", Data: map[string]string{}})
			}

		case paths := <-b.staleCh:
			for _, p := range paths {
				pending[p] = struct{}{}
			}
			if flush == nil && len(pending) > 0 {
				flush = time.After(b.staleDelay)
			}

		case <-flush:
			flush = nil
			flushStale()

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
// Pending stale paths are dropped.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. With paths, the
// client only receives buffers.stale for those buffers.
func (b *Broker) Subscribe(paths ...string) chan []byte {
	c := &client{ch: make(chan []byte, 64), paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		c.paths[p] = struct{}{}
	}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}

	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}

	return c.ch
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

// PublishFileEvent publishes a watcher event: file.<kind> for created,
// updated and deleted, tree.synced for synced. Other kinds are ignored.
func (b *Broker) PublishFileEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fileEventCh <- fileEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishStale queues buffer paths that need a refresh.
func (b *Broker) PublishStale(paths []string) {
	if len(paths) == 0 || b.closed.Load() {
		return
	}
	select {
	case b.staleCh <- paths:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events?path=...).
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

	ch := b.Subscribe(r.URL.Query()["path"]...)
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
