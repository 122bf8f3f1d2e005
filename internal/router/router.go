package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/config"
	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/middleware"
)

// Register wires every route of the service onto the provided Echo
// instance.
//
//	GET  /healthz                          – liveness probe, no auth
//	GET  /v1/showtimes/:id/seats           – public seat map
//	GET  /v1/ws                            – websocket handshake (token in query)
//	POST /v1/showtimes/:id/reservations    – hold a seat (JWT + rate limit)
func Register(e *echo.Echo, res *handler.ReservationHandler, wsH *handler.WSHandler, verifier *auth.Verifier, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Guests may browse seat availability before logging in.
	e.GET("/v1/showtimes/:id/seats", res.SeatMap)

	// The websocket handshake carries its own credential; the JWT
	// middleware does not apply here.
	e.GET("/v1/ws", wsH.Serve)

	reserve := e.Group("/v1")
	reserve.Use(middleware.JWTAuth(verifier))
	reserve.Use(middleware.NewTokenBucket(rlCfg, rdb))
	reserve.POST("/showtimes/:id/reservations", res.HoldSeat)
}
