package handlers

import (
	"context"

	"devsocial/pkg/envelope"
	"devsocial/pkg/hub"
	"devsocial/pkg/middleware"
	"devsocial/pkg/models"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RealtimeHandler exposes the websocket hub. Connections live until the
// socket fails or ctx is cancelled.
type RealtimeHandler struct {
	ctx      context.Context
	sessions *hub.Sessions
	log      *zap.Logger
}

func NewRealtime(ctx context.Context, sessions *hub.Sessions, log *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{ctx: ctx, sessions: sessions, log: log.Named("ws")}
}

func (h *RealtimeHandler) Register(r fiber.Router) {
	r.Get("/hub/status", h.Status)
	r.Use("/ws", h.Handshake)
	r.Get("/ws", websocket.New(h.serve))
}

// Handshake authenticates the upgrade request once. The token comes from the
// token query parameter or a Bearer header.
func (h *RealtimeHandler) Handshake(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	identity, err := h.sessions.Authenticate(c.UserContext(), middleware.BearerToken(c))
	if err != nil {
		h.log.Debug("handshake rejected", zap.String("ip", c.IP()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(envelope.NewError(envelope.Envelope{}, fiber.StatusUnauthorized, "authentication error"))
	}

	middleware.SetIdentity(c, identity)
	return c.Next()
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	identity, _ := conn.Locals(middleware.IdentityKey).(models.Identity)
	h.sessions.Serve(h.ctx, conn, identity)
}

// GET /hub/status
func (h *RealtimeHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"clients":       h.sessions.ConnectionCount(),
		"authenticated": h.sessions.AuthenticatedCount(),
		"rooms":         h.sessions.RoomCount(),
	})
}
