package websocket

import (
	"context"
	"sync"

	"forumhub/internal/util"

	"go.uber.org/zap"
)

// Hub maintains the set of active clients, their discussion rooms, and routes
// messages to them. All map mutation happens on the Run goroutine.
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool

	// Subscribed clients by discussion ID
	rooms map[string]map[*Client]bool

	broadcast   chan *Message
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	done        chan struct{}

	// guards reads from outside Run
	mu sync.RWMutex
}

// Message is the frame written to clients. Routing fields stay server side.
type Message struct {
	Type         string      `json:"type"`
	DiscussionID string      `json:"discussion_id,omitempty"`
	Payload      interface{} `json:"payload"`

	userID string
	room   string
	direct *Client
}

type subscription struct {
	client       *Client
	discussionID string
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		broadcast:   make(chan *Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		done:        make(chan struct{}),
	}
}

// Run routes messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			count := len(h.clients[client.UserID])
			h.mu.Unlock()
			util.Logger.Debug("websocket client registered",
				zap.String("user_id", client.UserID), zap.Int("connections", count))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			util.Logger.Debug("websocket client unregistered", zap.String("user_id", client.UserID))

		case sub := <-h.subscribe:
			h.mu.Lock()
			if h.clients[sub.client.UserID][sub.client] {
				if h.rooms[sub.discussionID] == nil {
					h.rooms[sub.discussionID] = make(map[*Client]bool)
				}
				h.rooms[sub.discussionID][sub.client] = true
				sub.client.rooms[sub.discussionID] = true
			}
			h.mu.Unlock()

		case sub := <-h.unsubscribe:
			h.mu.Lock()
			h.leave(sub.client, sub.discussionID)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			var targets map[*Client]bool
			switch {
			case message.direct != nil:
				if h.clients[message.direct.UserID][message.direct] {
					targets = map[*Client]bool{message.direct: true}
				}
			case message.room != "":
				targets = h.rooms[message.room]
			default:
				targets = h.clients[message.userID]
			}
			for client := range targets {
				select {
				case client.send <- message:
				default:
					util.Logger.Warn("websocket client too slow, dropping", zap.String("user_id", client.UserID))
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops the client from every map and closes its send channel once.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.UserID]
	if !ok || !clients[client] {
		return
	}
	for room := range client.rooms {
		h.leave(client, room)
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
}

func (h *Hub) leave(client *Client, discussionID string) {
	delete(client.rooms, discussionID)
	if members, ok := h.rooms[discussionID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, discussionID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		util.Logger.Warn("websocket broadcast channel full, dropping message", zap.String("type", message.Type))
	}
}

// post hands a control request to Run unless the hub has stopped.
func post[T any](h *Hub, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.done:
	}
}

func (h *Hub) enqueueDirect(client *Client, message *Message) {
	message.direct = client
	h.enqueue(message)
}

// BroadcastToUser sends a notification to every connection of a user
func (h *Hub) BroadcastToUser(userID string, payload map[string]interface{}) {
	h.enqueue(&Message{Type: "notification", Payload: payload, userID: userID})
}

// BroadcastToDiscussion sends an event to the subscribers of a discussion
func (h *Hub) BroadcastToDiscussion(discussionID, eventType string, payload interface{}) {
	h.enqueue(&Message{Type: eventType, DiscussionID: discussionID, Payload: payload, room: discussionID})
}

// GetClientCount returns the number of connected clients for a user
func (h *Hub) GetClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// GetRoomSize returns the number of clients subscribed to a discussion
func (h *Hub) GetRoomSize(discussionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[discussionID])
}
