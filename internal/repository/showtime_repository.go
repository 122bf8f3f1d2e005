package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// ShowtimeRepo provides read access to showtimes and the seat grid of
// their halls.  The reservation gateway uses it to validate that a
// requested seat coordinate lies within the hall's grid before writing
// a hold.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a new ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetByID loads a showtime together with the seat grid dimensions of
// its hall.  Returns ErrShowtimeNotFound when the id does not resolve.
func (r *ShowtimeRepo) GetByID(ctx context.Context, showtimeID uint64) (*model.Showtime, error) {
	const q = `SELECT s.id, s.hall_id, s.title, s.starts_at, h.seat_rows, h.seat_cols, s.created_at
	           FROM showtimes s
	           JOIN halls h ON h.id = s.hall_id
	           WHERE s.id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, showtimeID).Scan(
		&st.ID, &st.HallID, &st.Title, &st.StartsAt, &st.SeatRows, &st.SeatCols, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	return &st, nil
}
