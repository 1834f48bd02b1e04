package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stcoins/config"
	"stcoins/internal/auth"
	"stcoins/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubPublishesOnlyToOwner(t *testing.T) {
	h := NewHub()
	alice := NewClient(1)
	bob := NewClient(2)
	h.Register(alice)
	h.Register(bob)
	require.Equal(t, 1, h.ClientCount(1))

	h.PublishEntry(models.LedgerEntry{UserID: 1, Delta: 50, BalanceAfter: 50, Type: "TASK_COMPLETION"})

	select {
	case raw := <-alice.Send:
		var ev BalanceEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		require.Equal(t, "balance", ev.Type)
		require.Equal(t, int64(50), ev.Balance)
	default:
		t.Fatal("owner got no event")
	}
	require.Empty(t, bob.Send)

	alice.Close()
	alice.Close()
	require.Equal(t, 0, h.ClientCount(1))
	h.PublishEntry(models.LedgerEntry{UserID: 1, Delta: 1, BalanceAfter: 51})
}

type fixedBalance int64

func (f fixedBalance) Balance(context.Context, uint) (int64, time.Time, error) {
	return int64(f), time.Now(), nil
}

func TestUpgradeBalanceWSStreamsSnapshotAndEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Minute, Issuer: "test"}
	hub := NewHub()
	r := gin.New()
	r.GET("/ws/balance", UpgradeBalanceWS(cfg, hub, fixedBalance(120)))
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/balance"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bogus", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.GenerateAccessToken(cfg, 9, "u@example.com", "user")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap BalanceEvent
	require.NoError(t, conn.ReadJSON(&snap))
	require.Equal(t, "snapshot", snap.Type)
	require.Equal(t, int64(120), snap.Balance)

	require.Eventually(t, func() bool { return hub.ClientCount(9) == 1 }, time.Second, 10*time.Millisecond)
	hub.PublishEntry(models.LedgerEntry{UserID: 9, Delta: -20, BalanceAfter: 100, Type: "REDEMPTION"})

	var ev BalanceEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "balance", ev.Type)
	require.Equal(t, int64(100), ev.Balance)
	require.Equal(t, int64(-20), ev.Delta)
}
