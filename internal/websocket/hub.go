package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/scribehub/api/internal/model"
)

// Client is one subscriber watching a recording
type Client struct {
	RecordingID string
	Conn        *websocket.Conn
	Send        chan []byte

	// pushed is set under Hub.mu once any frame has been queued
	pushed bool
}

// StatusFunc loads the stored status of the watched recording
type StatusFunc func() (model.RecordingStatus, error)

// Hub fans recording status changes out to subscribers
type Hub struct {
	// Clients grouped by recording ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	RecordingID string
	Message     []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.RecordingID] == nil {
				h.clients[client.RecordingID] = make(map[*Client]bool)
			}
			h.clients[client.RecordingID][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to recording %s", client.RecordingID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Printf("Client unsubscribed from recording %s", client.RecordingID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.RecordingID] {
				select {
				case client.Send <- msg.Message:
					client.pushed = true
				default:
					log.Printf("Subscriber of recording %s is slow, dropping update", msg.RecordingID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run
func (h *Hub) Stop() {
	close(h.done)
}

// remove must be called with mu held. Send is only closed here, after the
// connection's reader has stopped.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.RecordingID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.RecordingID)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns how many clients watch recordingID
func (h *Hub) Subscribers(recordingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[recordingID])
}

// BroadcastStatus sends a status update to all recording subscribers
func (h *Hub) BroadcastStatus(recordingID string, status model.RecordingStatus) {
	h.send(recordingID, model.StatusEvent(recordingID, status))
}

func (h *Hub) send(recordingID string, msg model.RecordingEvent) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}

	// never block the worker on a full hub
	select {
	case h.broadcast <- &BroadcastMessage{RecordingID: recordingID, Message: data}:
	default:
		log.Printf("Websocket hub busy, dropped update for recording %s", recordingID)
	}
}

// Subscribe registers a subscriber for recordingID and only then loads the
// current status, so a transition racing the handshake is either seen by
// load or broadcast to the new client. The loaded status is queued as the
// first frame unless a broadcast already reached the client; broadcasts are
// terminal transitions, so the newer frame wins.
func (h *Hub) Subscribe(c *websocket.Conn, recordingID string, load StatusFunc) (*Client, error) {
	client := &Client{
		RecordingID: recordingID,
		Conn:        c,
		Send:        make(chan []byte, 16),
	}
	h.Register(client)

	current, err := load()
	if err != nil {
		h.Unregister(client)
		return nil, err
	}

	data, err := json.Marshal(model.StatusEvent(recordingID, current))
	if err != nil {
		h.Unregister(client)
		return nil, err
	}

	h.mu.Lock()
	if !client.pushed {
		select {
		case client.Send <- data:
			client.pushed = true
		default:
		}
	}
	h.mu.Unlock()

	return client, nil
}

// HandleConnection pumps frames to a subscribed client until it disconnects
func (h *Hub) HandleConnection(client *Client) {
	defer h.Unregister(client)
	c := client.Conn

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.RecordingEvent
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.EventPing {
			data, _ := json.Marshal(model.RecordingEvent{Type: model.EventPong})
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// RejectConnection tells the subscriber why it cannot watch recordingID and closes
func RejectConnection(c *websocket.Conn, recordingID, code, message string) {
	c.WriteJSON(model.ErrorEvent(recordingID, code, message))
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
