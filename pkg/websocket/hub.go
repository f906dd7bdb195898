// backend/pkg/websocket/hub.go
package websocket

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/websocket"

	"exam-system/internal/models"
)

// Message is the standard envelope pushed over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins. Adjust this in production!
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID uint
}

// Hub tracks connected users and pushes test status transitions to the
// students a test is assigned to. Both the background sweeper and the lazy
// reconciler feed it.
type Hub struct {
	mu            sync.RWMutex
	clientsByUser map[uint]map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	jwtSecret     []byte
}

func NewHub(jwtSecret string) *Hub {
	return &Hub{
		clientsByUser: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		jwtSecret:     []byte(jwtSecret),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clientsByUser[client.userID] == nil {
				h.clientsByUser[client.userID] = make(map[*Client]bool)
			}
			h.clientsByUser[client.userID][client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected for user %d", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clientsByUser[client.userID]; ok {
				if clients[client] {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clientsByUser, client.userID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected for user %d", client.userID)
		}
	}
}

// HandleWebSocket upgrades the connection. Browsers cannot set headers on
// WebSocket dials, so the JWT arrives as a token query parameter.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userFromToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan Message, 8),
		userID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) userFromToken(tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, jwt.ErrSignatureInvalid
	}
	userID, ok := (*claims)["user_id"].(float64)
	if !ok {
		return 0, jwt.ErrSignatureInvalid
	}
	return uint(userID), nil
}

// SendMessageToUser delivers a message to every open connection of a user.
// Users with no connection simply miss the push; state lives in the store.
func (h *Hub) SendMessageToUser(userID uint, msgType string, data interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clientsByUser[userID] {
		select {
		case client.send <- Message{Type: msgType, Data: data}:
		default:
			// Slow consumer, drop rather than block the caller.
		}
	}
}

// NotifyStatusChange implements the reconcilers' notifier contract: every
// assignee of the test learns about the transition.
func (h *Hub) NotifyStatusChange(test *models.Test, status models.TestStatus) {
	data := map[string]interface{}{
		"test_name": test.Name,
		"status":    status,
	}
	for _, assignment := range test.Assignments {
		h.SendMessageToUser(assignment.StudentID, "test_status", data)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// Clients only listen; reads exist to surface close frames and pongs.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
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
			if err := c.conn.WriteJSON(message); err != nil {
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
