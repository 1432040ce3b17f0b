package handlers

import (
	"context"
	"time"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
	"github.com/Logan-Myn/dancehub-v3-sub000/services"
	"github.com/Logan-Myn/dancehub-v3-sub000/websocket"
)

const wsLookupTimeout = 5 * time.Second

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeOnboardingWs streams wizard state snapshots to the community owner.
// The first frame must be {"type":"auth","token":...}.
func (h *Handler) ServeOnboardingWs(c *websocketcontrib.Conn) {
	slug := c.Params("slug")
	log := h.log.WithFields(map[string]interface{}{"slug": slug})

	var authMsg AuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		log.Warn("websocket auth failed: invalid or missing auth message", nil)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}
	claims, err := middleware.ParseToken(h.jwtSecret, authMsg.Token)
	if err != nil {
		log.WithError(err).Warn("websocket auth failed: invalid token", nil)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	userID, _ := claims["user_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), wsLookupTimeout)
	community, err := h.communities.GetBySlug(ctx, slug)
	cancel()
	if err != nil || !services.IsOwner(community, userID) {
		_ = c.WriteJSON(fiber.Map{"error": "Forbidden"})
		c.Close()
		return
	}

	key := community.ID.String()
	client := &websocket.Client{Topic: websocket.OnboardingTopic(key), Conn: c}
	if !h.hub.Join(client) {
		c.Close()
		return
	}
	defer func() {
		h.hub.Leave(client)
		c.Close()
	}()
	if w, ok := h.wizards.Get(key); ok {
		h.hub.Publish(client.Topic, w.Snapshot())
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Debug("websocket closed", nil)
			} else {
				log.WithError(err).Debug("websocket read error", nil)
			}
			return
		}
	}
}
