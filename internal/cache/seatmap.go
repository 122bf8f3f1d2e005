// Package cache provides a Redis-backed cache for showtime seat maps.
// The websocket channel keeps clients current in real time; this cache
// only absorbs read bursts on the REST seat-map endpoint.  Entries are
// invalidated by the queue workers whenever a seat changes state, with
// a short TTL as a backstop.  All operations degrade to a miss when
// Redis is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// SeatMap caches the sparse seat map of a showtime under one key per
// showtime.
type SeatMap struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSeatMap returns a SeatMap cache.  rdb may be nil, in which case
// every lookup misses and writes are no-ops.
func NewSeatMap(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SeatMap {
	return &SeatMap{rdb: rdb, ttl: ttl, logger: logger}
}

func key(showtimeID uint64) string {
	return fmt.Sprintf("seatmap:%d", showtimeID)
}

// Get returns the cached seat map, or (nil, false) on miss or error.
func (c *SeatMap) Get(ctx context.Context, showtimeID uint64) ([]model.SeatState, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(showtimeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var states []model.SeatState
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, false
	}
	return states, true
}

// Set stores a seat map with the configured TTL.  Failures are logged
// and swallowed; caching is never load-bearing.
func (c *SeatMap) Set(ctx context.Context, showtimeID uint64, states []model.SeatState) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(states)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(showtimeID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("seat map cache set failed",
			zap.Uint64("showtime_id", showtimeID), zap.Error(err))
	}
}

// Invalidate drops the cached entry for a showtime.  Implements
// queue.SeatMapCache.
func (c *SeatMap) Invalidate(ctx context.Context, showtimeID uint64) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(showtimeID)).Err(); err != nil {
		c.logger.Debug("seat map cache invalidate failed",
			zap.Uint64("showtime_id", showtimeID), zap.Error(err))
	}
}
