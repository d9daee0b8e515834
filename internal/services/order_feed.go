package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"hisui-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// OrderFeed delivers order confirmations over websockets, keyed by user so a
// committed order only reaches its owner's connections.
type OrderFeed struct {
	clients    map[string]map[*FeedClient]bool
	events     chan feedEvent
	register   chan *FeedClient
	unregister chan *FeedClient
}

type feedEvent struct {
	userID  string
	payload []byte
}

type FeedClient struct {
	feed   *OrderFeed
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func NewOrderFeed() *OrderFeed {
	return &OrderFeed{
		clients:    make(map[string]map[*FeedClient]bool),
		events:     make(chan feedEvent, 64),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
	}
}

func (f *OrderFeed) Run() {
	for {
		select {
		case client := <-f.register:
			if f.clients[client.userID] == nil {
				f.clients[client.userID] = make(map[*FeedClient]bool)
			}
			f.clients[client.userID][client] = true
			log.Printf("Order feed client connected for user %s", client.userID)

		case client := <-f.unregister:
			if conns, ok := f.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(f.clients, client.userID)
				}
			}

		case event := <-f.events:
			for client := range f.clients[event.userID] {
				select {
				case client.send <- event.payload:
				default:
					// Slow consumer; drop the connection rather than block.
					delete(f.clients[event.userID], client)
					close(client.send)
				}
			}
		}
	}
}

// PublishOrder queues an order_created event for the user's connections.
// Never blocks the caller; if the feed is saturated the event is dropped.
func (f *OrderFeed) PublishOrder(userID string, order *models.Order) {
	payload, err := json.Marshal(map[string]any{
		"event": "order_created",
		"order": order,
	})
	if err != nil {
		log.Printf("Order feed marshal error: %v", err)
		return
	}
	select {
	case f.events <- feedEvent{userID: userID, payload: payload}:
	default:
		log.Printf("Order feed saturated, dropping event for user %s", userID)
	}
}

func (f *OrderFeed) RegisterClient(conn *websocket.Conn, userID string) *FeedClient {
	client := &FeedClient{
		feed:   f,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}
	f.register <- client
	return client
}

func (c *FeedClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *FeedClient) ReadPump() {
	defer func() {
		c.feed.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is push-only; inbound frames are drained and discarded.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ OrderPublisher = (*OrderFeed)(nil)
