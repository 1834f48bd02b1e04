package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"stcoins/config"
	"stcoins/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BalanceReader supplies the snapshot sent when a connection opens.
type BalanceReader interface {
	Balance(ctx context.Context, userID uint) (int64, time.Time, error)
}

// UpgradeBalanceWS authenticates with ?token=, sends the current balance and then
// streams BalanceEvents until the client goes away.
func UpgradeBalanceWS(cfg *config.JWTConfig, hub *Hub, balances BalanceReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ParseAccessToken(cfg, c.Query("token"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(claims.UserID)
		hub.Register(client)
		defer client.Close()

		if balance, asOf, err := balances.Balance(c.Request.Context(), claims.UserID); err == nil {
			data, _ := json.Marshal(BalanceEvent{Type: "snapshot", Balance: balance, AsOf: asOf})
			client.Send <- data
		}
		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames; the channel is server-to-client only.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
