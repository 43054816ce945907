package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tipbox/internal/store"
	ws "tipbox/internal/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Ledger store.Ledger
	Hub    *ws.Hub
}

func NewWebSocketHandler(ledger store.Ledger, hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{Ledger: ledger, Hub: hub}
}

// ServeWs attaches a creator's alert widget, authenticated by the secret
// widget token generated at registration.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	secretToken := c.Param("secretToken")

	creator, err := h.Ledger.GetUserByWidgetToken(secretToken)
	if err != nil {
		log.Println("Invalid WebSocket secret token:", secretToken)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("Failed to upgrade to connection:", err)
		return
	}

	client := &ws.Client{
		Hub:       h.Hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		CreatorID: creator.ID,
	}

	client.Hub.Register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	defer func() {
		client.Conn.Close()
	}()

	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		client.Hub.Unregister <- client
		client.Conn.Close()
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			break
		}
	}
}
