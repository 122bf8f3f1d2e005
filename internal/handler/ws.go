package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/ws"
)

// WSHandler admits authenticated websocket connections into the
// broadcast hub.  The credential travels base64-wrapped in the "token"
// query parameter of the handshake URI; an invalid or missing
// credential is rejected with 401 before the transport upgrade, so the
// hub never sees an unauthenticated connection.
type WSHandler struct {
	hub      *ws.Hub
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler constructs a WSHandler bound to the given hub and
// token verifier.
func NewWSHandler(hub *ws.Hub, verifier *auth.Verifier, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot send custom headers on a websocket
			// handshake; admission is guarded by the token instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /v1/ws.  After a successful upgrade the connection
// is attached to the hub and a read loop runs for the lifetime of the
// transport: it surfaces pongs to the liveness state machine and
// detaches the client once the peer goes away.  Inbound data frames
// are ignored; the channel is push-only.
func (h *WSHandler) Serve(c echo.Context) error {
	userID, err := h.verifier.HandshakeUserID(c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	client := h.hub.Attach(userID, conn)
	conn.SetPongHandler(func(string) error {
		client.PongReceived()
		return nil
	})

	go func() {
		defer h.hub.Detach(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
