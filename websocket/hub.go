package websocket

import (
	"log"
	"sync"
	"time"

	"vidgrab/types"
)

// AllJobs is the subscription key for clients that follow every job
const AllJobs = "all"

// Hub interface defines the methods for fanning out job progress
type Hub interface {
	Run()
	Shutdown()
	BroadcastProgress(jobID, msgType, status, speed, message string, progress float64)
	SendTo(client *Client, message types.ProgressMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active clients and broadcasts messages to them
type hub struct {
	// Registered clients keyed by job ID, or AllJobs
	clients map[string]map[*Client]bool

	broadcast  chan types.ProgressMessage
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	once       sync.Once

	mu sync.Mutex
}

// directMessage is addressed to a single client
type directMessage struct {
	client  *Client
	message types.ProgressMessage
}

// NewHub creates a new WebSocket hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressMessage, 256),
		direct:     make(chan directMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.jobID] == nil {
				h.clients[client.jobID] = make(map[*Client]bool)
			}
			h.clients[client.jobID][client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected for job %s", client.jobID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client.jobID, client)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected for job %s", client.jobID)

		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client.jobID][d.client] {
				select {
				case d.client.send <- d.message:
				default:
					h.remove(d.client.jobID, d.client)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(message.JobID, message)
			h.deliver(AllJobs, message)
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for key, clients := range h.clients {
				for client := range clients {
					h.remove(key, client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown stops the event loop and closes every client
func (h *hub) Shutdown() {
	h.once.Do(func() { close(h.quit) })
}

// deliver sends to one subscription group, dropping clients that cannot keep up
func (h *hub) deliver(key string, message types.ProgressMessage) {
	for client := range h.clients[key] {
		select {
		case client.send <- message:
		default:
			h.remove(key, client)
		}
	}
}

func (h *hub) remove(key string, client *Client) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// BroadcastProgress queues a progress message for the clients of a job
func (h *hub) BroadcastProgress(jobID, msgType, status, speed, message string, progress float64) {
	progressMsg := types.ProgressMessage{
		JobID:     jobID,
		Type:      msgType,
		Progress:  progress,
		Status:    status,
		Speed:     speed,
		Message:   message,
		Timestamp: time.Now(),
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- progressMsg:
	default:
		log.Printf("WebSocket broadcast channel full, dropping message for job %s", jobID)
	}
}

// SendTo delivers a message to one registered client only
func (h *hub) SendTo(client *Client, message types.ProgressMessage) {
	select {
	case h.direct <- directMessage{client: client, message: message}:
	case <-h.quit:
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
