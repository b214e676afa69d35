package main

import (
	"sync"

	"github.com/rs/zerolog"
)

// inbound is one decoded client message waiting for the loop
type inbound struct {
	client *Client
	env    InEnvelope
}

// Hub owns the event loop. Every room mutation, whether it comes from a
// client message, a timer, a tick or a disconnect, runs inside Run.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	inbox      chan inbound
	tasks      chan func()
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	engine     *Engine

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int
	maxTotalConns int

	log zerolog.Logger
}

// NewHub creates a hub and its engine. ledger may be nil.
func NewHub(cfg Config, ledger MatchLedger, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client, 64),
		inbox:         make(chan inbound, 1024),
		tasks:         make(chan func(), 1024),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		ipConns:       make(map[string]int),
		maxConnsPerIP: cfg.MaxConnsPerIP,
		maxTotalConns: cfg.MaxTotalConns,
		log:           logger.With().Str("component", "hub").Logger(),
	}
	h.engine = NewEngine(NewRoomRegistry(cfg.MaxRooms), h.Clock(), cfg.Timings(), ledger, logger)
	return h
}

// Clock returns a Clock whose callbacks run on the hub loop
func (h *Hub) Clock() Clock {
	return loopClock{post: h.postUntil}
}

// Engine returns the engine driven by this hub
func (h *Hub) Engine() *Engine { return h.engine }

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// Run processes events until Stop is called
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.engine.Disconnect(client)
			}

		case in := <-h.inbox:
			if h.clients[in.client] {
				h.engine.Handle(in.client, in.env)
			}

		case fn := <-h.tasks:
			fn()

		case <-h.quit:
			h.engine.Shutdown()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.log.Info().Msg("hub stopped")
			return
		}
	}
}

// Stop ends Run after closing every room and waits for it to return
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Register hands a freshly upgraded client to the loop. It returns once the
// loop has taken the client, so messages read afterwards are never dropped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client; its seat, if any, is released
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Dispatch queues a client message for the loop
func (h *Hub) Dispatch(c *Client, env InEnvelope) {
	select {
	case h.inbox <- inbound{client: c, env: env}:
	case <-h.quit:
	}
}

// post schedules fn on the loop. Work posted after Stop is dropped.
func (h *Hub) post(fn func()) {
	h.postUntil(fn, nil)
}

// postUntil is post that also gives up once cancel is closed
func (h *Hub) postUntil(fn func(), cancel <-chan struct{}) {
	select {
	case h.tasks <- fn:
	case <-h.quit:
	case <-cancel:
	}
}

// Call runs fn on the loop and waits for it. Returns false if the hub has
// stopped.
func (h *Hub) Call(fn func()) bool {
	ran := make(chan struct{})
	h.post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-h.done:
		return false
	}
}
