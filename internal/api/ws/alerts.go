// Package ws streams safety alerts to connected admin dashboards over
// WebSocket, backed by Redis pub/sub so every server instance sees every
// alert.
package ws

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/audit"
	redisstore "github.com/vitracka/companion/internal/store/redis"
)

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	pubsub *redisstore.Client
}

// NewHub creates a new WebSocket hub.
func NewHub(pubsub *redisstore.Client) *Hub {
	return &Hub{pubsub: pubsub}
}

// ServeAlerts handles WebSocket connections for the admin safety-alert
// feed. Subscribes to the audit alert channel and forwards each published
// alert payload to the client. Access control (admin role) happens in the
// router middleware chain before this handler runs.
func (h *Hub) ServeAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	messages, cleanup, err := h.pubsub.Subscribe(ctx, audit.AlertChannel)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
