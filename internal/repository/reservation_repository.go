package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// mysqlDupEntry is the MySQL error number raised when an insert
// violates a unique key (here: uniq_showtime_seat on showtime_id,
// seat_row, seat_col).
const mysqlDupEntry = 1062

// ReservationRepo is the seat ledger: durable CRUD over reservation
// rows with per-seat exclusivity enforced by the storage engine, not by
// application locks.  Concurrent holds on the same seat race at the
// database and exactly one insert wins; the loser sees ErrSeatTaken and
// no row is created for it.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying pool for callers that need to open their
// own transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateHold inserts a PENDING reservation row for (showtime, seat,
// user) and returns the generated id.  A duplicate-key violation on
// the seat uniqueness constraint is mapped to ErrSeatTaken; any other
// database error is returned as-is.
func (r *ReservationRepo) CreateHold(ctx context.Context, showtimeID, userID uint64, seat model.SeatCoord) (uint64, error) {
	const q = `INSERT INTO reservations (showtime_id, user_id, seat_row, seat_col, status)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, showtimeID, userID, seat.Row, seat.Col, model.StatusPending)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDupEntry {
			return 0, ErrSeatTaken
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// AttachSettlementRef promotes a reservation to CONFIRMED by recording
// its settlement reference.  The write is a compare-and-set: it only
// applies when the current reference is NULL or already equals ref, so
// re-applying the same reference under redelivery is a no-op.  When the
// update matches nothing, the row is probed to distinguish a missing
// reservation (ErrReservationNotFound), an already-confirmed row with
// the same reference (success) and a conflicting reference
// (ErrSettlementMismatch).
func (r *ReservationRepo) AttachSettlementRef(ctx context.Context, reservationID uint64, ref string) error {
	const q = `UPDATE reservations
	           SET settlement_ref = ?, status = ?
	           WHERE id = ? AND (settlement_ref IS NULL OR settlement_ref = ?)`
	result, err := r.db.ExecContext(ctx, q, ref, model.StatusConfirmed, reservationID, ref)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Zero affected rows: either the row is gone, the same reference is
	// already attached (MySQL reports unchanged rows as zero), or a
	// different reference is present.
	var current sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT settlement_ref FROM reservations WHERE id = ?`, reservationID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		return err
	}
	if current.Valid && current.String == ref {
		return nil
	}
	return ErrSettlementMismatch
}

// DeleteByID discards a reservation row, releasing its seat.  Used when
// the external settlement process reports a failed confirmation.
// Deleting an already-absent row is not an error so the operation stays
// idempotent under message redelivery.
func (r *ReservationRepo) DeleteByID(ctx context.Context, reservationID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, reservationID)
	return err
}

// ReleaseConfirmed deletes every CONFIRMED reservation of the given
// users on one showtime and returns the freed seat coordinates.
// PENDING rows are never touched: a seat mid-confirmation must not be
// cancelled by this path.  The select and delete run in one
// transaction so the returned coordinates match exactly the rows
// removed.  When nothing matches, an empty slice and nil error are
// returned.
func (r *ReservationRepo) ReleaseConfirmed(ctx context.Context, showtimeID uint64, userIDs []uint64) ([]model.SeatCoord, error) {
	if len(userIDs) == 0 {
		return []model.SeatCoord{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, 0, len(userIDs))
	args := make([]interface{}, 0, len(userIDs)+2)
	args = append(args, showtimeID, model.StatusConfirmed)
	for _, uid := range userIDs {
		placeholders = append(placeholders, "?")
		args = append(args, uid)
	}
	query := `SELECT id, seat_row, seat_col FROM reservations
	          WHERE showtime_id = ? AND status = ? AND user_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []interface{}
	var freed []model.SeatCoord
	for rows.Next() {
		var id uint64
		var seat model.SeatCoord
		if scanErr := rows.Scan(&id, &seat.Row, &seat.Col); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
		freed = append(freed, seat)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return []model.SeatCoord{}, nil
	}
	// Delete by collected ids so rows that changed state between the
	// select and the delete cannot be swept up.
	idPlaceholders := make([]string, len(ids))
	for i := range ids {
		idPlaceholders[i] = "?"
	}
	del := `DELETE FROM reservations WHERE id IN (` + strings.Join(idPlaceholders, ",") + `)`
	if _, err = tx.ExecContext(ctx, del, ids...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return freed, nil
}

// SeatStates returns the sparse seat map of a showtime: one entry per
// held or confirmed seat, ordered by row then column.  Free seats have
// no row and therefore no entry.
func (r *ReservationRepo) SeatStates(ctx context.Context, showtimeID uint64) ([]model.SeatState, error) {
	const q = `SELECT seat_row, seat_col, status FROM reservations
	           WHERE showtime_id = ?
	           ORDER BY seat_row, seat_col`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	states := make([]model.SeatState, 0)
	for rows.Next() {
		var s model.SeatState
		if err := rows.Scan(&s.Seat.Row, &s.Seat.Col, &s.Status); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}
