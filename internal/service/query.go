package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/model"
)

const (
	defaultHistoryLimit = 100
	defaultRangeLimit   = 1000
)

// QueryStore is the read side of the telemetry store.
type QueryStore interface {
	LatestReading(ctx context.Context, deviceID string) (model.Reading, error)
	LatestAllReadings(ctx context.Context) ([]model.Reading, error)
	RangeReadings(ctx context.Context, f db.RangeFilter) ([]model.Reading, error)
	ChannelSeries(ctx context.Context, channel string, start, end time.Time, limit int) ([]db.ChannelPoint, error)
}

// QueryService answers time-ranged, latest-value, and interval-bucketed
// queries for the HTTP layer. Not-found and storage failures stay distinct:
// callers check errors.Is(err, db.ErrNotFound).
type QueryService struct {
	store  QueryStore
	logger *zap.SugaredLogger
}

func NewQueryService(store QueryStore, logger *zap.SugaredLogger) *QueryService {
	return &QueryService{store: store, logger: logger}
}

// Latest returns the most recent reading for one device.
func (q *QueryService) Latest(ctx context.Context, deviceID string) (model.Reading, error) {
	return q.store.LatestReading(ctx, deviceID)
}

// LatestAll returns each device's most recent reading, ordered by device.
func (q *QueryService) LatestAll(ctx context.Context) ([]model.Reading, error) {
	return q.store.LatestAllReadings(ctx)
}

// History returns one device's readings, newest first.
func (q *QueryService) History(ctx context.Context, deviceID string, limit int) ([]model.Reading, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return q.store.RangeReadings(ctx, db.RangeFilter{DeviceID: deviceID, Limit: limit})
}

// RangeParams narrows a Range query. Zero times mean "no bound".
type RangeParams struct {
	DeviceID string
	Start    time.Time
	End      time.Time
	Limit    int
}

// Range returns readings newest first, optionally filtered by device and
// inclusive time bounds.
func (q *QueryService) Range(ctx context.Context, p RangeParams) ([]model.Reading, error) {
	if p.Limit <= 0 {
		p.Limit = defaultRangeLimit
	}
	return q.store.RangeReadings(ctx, db.RangeFilter{
		DeviceID: p.DeviceID,
		Start:    p.Start,
		End:      p.End,
		Limit:    p.Limit,
	})
}

// BucketPoint is one channel sample keyed by its interval bucket.
type BucketPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Bucketed groups one channel's samples by device, keying each sample by its
// timestamp truncated to the interval boundary. Samples landing in the same
// bucket are NOT aggregated; the caller gets one point per reading. That
// mirrors the dashboard's historical behavior; whether buckets should carry a
// mean/min/max instead is pending product clarification.
func (q *QueryService) Bucketed(ctx context.Context, channel string, start, end time.Time, interval string, limit int) (map[string][]BucketPoint, error) {
	if limit <= 0 {
		limit = defaultRangeLimit
	}
	ivl := ParseInterval(interval)

	points, err := q.store.ChannelSeries(ctx, channel, start, end, limit)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]BucketPoint)
	for _, p := range points {
		bucket := p.Timestamp.UTC().Truncate(ivl)
		grouped[p.DeviceID] = append(grouped[p.DeviceID], BucketPoint{
			Timestamp: bucket,
			Value:     p.Value,
		})
	}
	return grouped, nil
}

// ParseInterval parses an "<integer><unit>" interval where unit is one of
// s, m, h, d. Unrecognized units default to minutes; anything unparsable
// falls back to one minute.
func ParseInterval(interval string) time.Duration {
	if len(interval) < 2 {
		return time.Minute
	}
	unit := interval[len(interval)-1]
	value, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || value <= 0 {
		return time.Minute
	}

	switch unit {
	case 's':
		return time.Duration(value) * time.Second
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default: // 'm' and anything unrecognized
		return time.Duration(value) * time.Minute
	}
}
