package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/queue"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// holdLedger is the slice of the seat ledger the gateway needs.
// Implemented by repository.ReservationRepo.
type holdLedger interface {
	CreateHold(ctx context.Context, showtimeID, userID uint64, seat model.SeatCoord) (uint64, error)
	DeleteByID(ctx context.Context, reservationID uint64) error
	SeatStates(ctx context.Context, showtimeID uint64) ([]model.SeatState, error)
}

// showtimeStore resolves showtimes and their hall grids.  Implemented
// by repository.ShowtimeRepo.
type showtimeStore interface {
	GetByID(ctx context.Context, showtimeID uint64) (*model.Showtime, error)
}

// settlementDispatcher sends the outbound correlated request to the
// external settlement process.  Implemented by queue.Publisher.
type settlementDispatcher interface {
	PublishSettlementRequest(ctx context.Context, req queue.SettlementRequest) error
}

// ReservationHandler is the reservation request gateway: it accepts a
// caller's intent to hold one seat, writes the provisional hold and
// dispatches the settlement request.  Confirmation arrives later via
// the queue workers; this handler never confirms anything itself.
type ReservationHandler struct {
	ledger    holdLedger
	showtimes showtimeStore
	publisher settlementDispatcher
	seatMaps  *cache.SeatMap
	logger    *zap.Logger
}

// NewReservationHandler constructs a ReservationHandler.  seatMaps may
// be nil to disable seat-map caching.
func NewReservationHandler(ledger holdLedger, showtimes showtimeStore, publisher settlementDispatcher, seatMaps *cache.SeatMap, logger *zap.Logger) *ReservationHandler {
	if ledger == nil || showtimes == nil || publisher == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		ledger:    ledger,
		showtimes: showtimes,
		publisher: publisher,
		seatMaps:  seatMaps,
		logger:    logger,
	}
}

// HoldSeat handles POST /v1/showtimes/:id/reservations.  It validates
// the seat coordinate against the hall grid, writes a PENDING
// reservation row and dispatches the settlement request.  The contract
// is one pending row and one outbound correlated request per user
// action: when the dispatch fails the freshly written hold is rolled
// back so the seat does not stay occupied by a request that can never
// be confirmed.  A seat collision returns 409 and performs no dispatch.
func (h *ReservationHandler) HoldSeat(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body struct {
		Row uint32 `json:"row"`
		Col uint32 `json:"column"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	st, err := h.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// Seat coordinates are 1-based and bounded by the hall grid.
	if body.Row < 1 || body.Row > st.SeatRows || body.Col < 1 || body.Col > st.SeatCols {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat outside hall grid"})
	}

	seat := model.SeatCoord{Row: body.Row, Col: body.Col}
	reservationID, err := h.ledger.CreateHold(ctx, showtimeID, userID, seat)
	if err != nil {
		if errors.Is(err, repository.ErrSeatTaken) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "seat unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	req := queue.SettlementRequest{
		ReservationID: reservationID,
		ShowtimeID:    showtimeID,
		Row:           seat.Row,
		Column:        seat.Col,
		UserID:        userID,
	}
	if err := h.publisher.PublishSettlementRequest(ctx, req); err != nil {
		// A hold without a correlated dispatch can never be confirmed
		// and would squat on the seat; roll it back.
		if delErr := h.ledger.DeleteByID(ctx, reservationID); delErr != nil {
			h.logger.Error("orphaned hold could not be rolled back",
				zap.Uint64("reservation_id", reservationID), zap.Error(delErr))
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "settlement dispatch failed"})
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"reservation_id": strconv.FormatUint(reservationID, 10),
		"status":         model.StatusPending,
	})
}

// SeatMap handles GET /v1/showtimes/:id/seats.  It returns the sparse
// seat map of a showtime together with the hall grid dimensions.  The
// map is served from the Redis cache when fresh; the queue workers
// invalidate the entry whenever a seat changes state.
func (h *ReservationHandler) SeatMap(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx := c.Request().Context()
	st, err := h.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	states, hit := cachedSeatStates(ctx, h.seatMaps, showtimeID)
	if !hit {
		states, err = h.ledger.SeatStates(ctx, showtimeID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if h.seatMaps != nil {
			h.seatMaps.Set(ctx, showtimeID, states)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": strconv.FormatUint(showtimeID, 10),
		"seat_rows":   st.SeatRows,
		"seat_cols":   st.SeatCols,
		"seats":       states,
	})
}

func cachedSeatStates(ctx context.Context, c *cache.SeatMap, showtimeID uint64) ([]model.SeatState, bool) {
	if c == nil {
		return nil, false
	}
	return c.Get(ctx, showtimeID)
}
