package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gomqtt-telemetry/internal/model"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned by read operations when no reading matches.
var ErrNotFound = errors.New("no readings found")

const readingColumns = `device_id, ts, voltage, temperature, vibration,
	singal_p_current, a_phase_current, b_phase_current, c_phase_current,
	a_gpio_state, b_gpio_state, c_gpio_state, general_gpio,
	rs485_data_count, rs485_data`

// channelColumns maps wire channel names to store columns. Only names in this
// map are ever interpolated into SQL.
var channelColumns = map[string]string{
	model.ChannelVoltage:       "voltage",
	model.ChannelTemperature:   "temperature",
	model.ChannelVibration:     "vibration",
	model.ChannelSinglePhase:   "singal_p_current",
	model.ChannelAPhaseCurrent: "a_phase_current",
	model.ChannelBPhaseCurrent: "b_phase_current",
	model.ChannelCPhaseCurrent: "c_phase_current",
}

// TelemetryStore is the durable append-only store for readings.
type TelemetryStore struct {
	mgr    *DBManager
	logger *zap.SugaredLogger
}

func NewTelemetryStore(mgr *DBManager, logger *zap.SugaredLogger) *TelemetryStore {
	return &TelemetryStore{mgr: mgr, logger: logger}
}

// InsertReading appends one reading. A reading is written whole or not at all.
func (s *TelemetryStore) InsertReading(ctx context.Context, r model.Reading) error {
	_, err := s.mgr.Pool().Exec(ctx, `
		INSERT INTO telemetry.device_data
			(device_id, ts, voltage, temperature, vibration,
			 singal_p_current, a_phase_current, b_phase_current, c_phase_current,
			 a_gpio_state, b_gpio_state, c_gpio_state, general_gpio,
			 rs485_data_count, rs485_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, r.DeviceID, r.Timestamp, r.Voltage, r.Temperature, r.Vibration,
		r.SingalPCurrent, r.APhaseCurrent, r.BPhaseCurrent, r.CPhaseCurrent,
		r.AGpioState, r.BGpioState, r.CGpioState, r.GeneralGpio,
		r.RS485DataCount, r.RS485Data)

	if err != nil {
		s.logger.Errorw("failed to insert reading", "error", err, "device", r.DeviceID, "ts", r.Timestamp)
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReading returns the most recent reading for one device.
func (s *TelemetryStore) LatestReading(ctx context.Context, deviceID string) (model.Reading, error) {
	row := s.mgr.Pool().QueryRow(ctx, `
		SELECT `+readingColumns+`
		FROM telemetry.device_data
		WHERE device_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, deviceID)

	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reading{}, ErrNotFound
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// LatestAllReadings returns the most recent reading per device, ordered by
// device id.
func (s *TelemetryStore) LatestAllReadings(ctx context.Context) ([]model.Reading, error) {
	rows, err := s.mgr.Pool().Query(ctx, `
		SELECT DISTINCT ON (device_id) `+readingColumns+`
		FROM telemetry.device_data
		ORDER BY device_id, ts DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("latest all readings: %w", err)
	}
	defer rows.Close()
	return collectReadings(rows)
}

// RangeFilter narrows a RangeReadings query. Zero values mean "no bound".
type RangeFilter struct {
	DeviceID string
	Start    time.Time
	End      time.Time
	Limit    int
}

// RangeReadings returns readings ordered by timestamp descending, optionally
// filtered by device and inclusive time bounds, capped at the filter limit.
func (s *TelemetryStore) RangeReadings(ctx context.Context, f RangeFilter) ([]model.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM telemetry.device_data WHERE 1=1`
	args := []any{}

	if f.DeviceID != "" {
		args = append(args, f.DeviceID)
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.mgr.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range readings: %w", err)
	}
	defer rows.Close()
	return collectReadings(rows)
}

// ChannelPoint is one (device, time, value) sample of a single channel.
type ChannelPoint struct {
	DeviceID  string
	Timestamp time.Time
	Value     float64
}

// ChannelSeries returns one channel's samples ordered by timestamp descending.
// The channel name must be one of model.RequiredChannels.
func (s *TelemetryStore) ChannelSeries(ctx context.Context, channel string, start, end time.Time, limit int) ([]ChannelPoint, error) {
	col, ok := channelColumns[channel]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}

	query := fmt.Sprintf(`SELECT device_id, ts, %s FROM telemetry.device_data WHERE 1=1`, col)
	args := []any{}

	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.mgr.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("channel series: %w", err)
	}
	defer rows.Close()

	var out []ChannelPoint
	for rows.Next() {
		var p ChannelPoint
		if err := rows.Scan(&p.DeviceID, &p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("channel series scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channel series rows: %w", err)
	}
	return out, nil
}

func scanReading(row pgx.Row) (model.Reading, error) {
	var r model.Reading
	err := row.Scan(&r.DeviceID, &r.Timestamp, &r.Voltage, &r.Temperature, &r.Vibration,
		&r.SingalPCurrent, &r.APhaseCurrent, &r.BPhaseCurrent, &r.CPhaseCurrent,
		&r.AGpioState, &r.BGpioState, &r.CGpioState, &r.GeneralGpio,
		&r.RS485DataCount, &r.RS485Data)
	return r, err
}

func collectReadings(rows pgx.Rows) ([]model.Reading, error) {
	var out []model.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("readings rows: %w", err)
	}
	return out, nil
}
