package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

//go:embed sql/upsert-station.sql
var upsertStationSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/insert-transmission.sql
var insertTransmissionSQL string

//go:embed sql/upsert-sample.sql
var upsertSampleSQL string

//go:embed sql/get-series.sql
var getSeriesSQL string

//go:embed sql/get-latest-samples.sql
var getLatestSamplesSQL string

//go:embed sql/get-latest-transmission.sql
var getLatestTransmissionSQL string

//go:embed sql/has-transmission.sql
var hasTransmissionSQL string

// StationRepository persists the station registry, each station's sample
// history and the log of processed transmissions.
type StationRepository interface {
	UpsertStations(ctx context.Context, stations []telemetry.Station) error
	GetStations(ctx context.Context) ([]telemetry.Station, error)
	HasTransmission(ctx context.Context, stationID int, transmissionID string) (bool, error)
	// SaveUpdate records the transmission and upserts its samples by
	// timestamp in one transaction. A transmission already recorded is kept
	// as is, while its samples still overwrite stored ones.
	SaveUpdate(ctx context.Context, update telemetry.Update) error
	GetSeries(ctx context.Context, stationID int) (telemetry.Series, error)
	// GetSamples returns the newest limit samples, oldest first.
	GetSamples(ctx context.Context, stationID int, limit int) (telemetry.Series, error)
	// GetLatestTransmission returns nil when the station has none.
	GetLatestTransmission(ctx context.Context, stationID int) (*telemetry.ParsedTransmission, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) StationRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) UpsertStations(ctx context.Context, stations []telemetry.Station) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, upsertStationSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert station: %w", err)
	}
	defer stmt.Close()

	for _, s := range stations {
		if _, err := stmt.ExecContext(ctx, s.Number, s.Generation.String(), s.Address, s.IMEI(), s.Latitude, s.Longitude, s.CEP); err != nil {
			return fmt.Errorf("upsert station %d: %w", s.Number, err)
		}
	}
	return tx.Commit()
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]telemetry.Station, error) {
	rows, err := r.db.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()

	var out []telemetry.Station
	for rows.Next() {
		var (
			s   telemetry.Station
			gen string
		)
		if err := rows.Scan(&s.Number, &gen, &s.Address, &s.Latitude, &s.Longitude, &s.CEP); err != nil {
			return nil, err
		}
		if s.Generation, err = telemetry.ParseGeneration(gen); err != nil {
			return nil, fmt.Errorf("station %d: %w", s.Number, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) HasTransmission(ctx context.Context, stationID int, transmissionID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, hasTransmissionSQL, stationID, transmissionID).Scan(&ok)
	return ok, err
}

func (r *repositoryImpl) SaveUpdate(ctx context.Context, update telemetry.Update) error {
	stationID := update.Station.Number
	t := update.Transmission

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, insertTransmissionSQL,
		stationID, t.TransmissionID, t.Payload,
		formatTS(t.TransmitTime), formatTS(t.ReceivedAt),
		t.Latitude, t.Longitude, t.CEP, t.IMEI, t.MOMSN,
		t.Alarm, len(update.Samples),
	); err != nil {
		return fmt.Errorf("insert transmission %q: %w", t.TransmissionID, err)
	}

	if len(update.Samples) > 0 {
		stmt, err := tx.PrepareContext(ctx, upsertSampleSQL)
		if err != nil {
			return fmt.Errorf("prepare upsert sample: %w", err)
		}
		defer stmt.Close()

		for _, s := range update.Samples {
			args := append([]any{stationID, formatTS(s.Time), s.Slot}, channelArgs(s.Values)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upsert sample %s: %w", formatTS(s.Time), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetSeries(ctx context.Context, stationID int) (telemetry.Series, error) {
	rows, err := r.db.QueryContext(ctx, getSeriesSQL, stationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close series rows", "station_id", stationID, "error", err)
		}
	}()
	return scanSamples(rows)
}

func (r *repositoryImpl) GetSamples(ctx context.Context, stationID int, limit int) (telemetry.Series, error) {
	rows, err := r.db.QueryContext(ctx, getLatestSamplesSQL, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close samples rows", "station_id", stationID, "error", err)
		}
	}()
	return scanSamples(rows)
}

func (r *repositoryImpl) GetLatestTransmission(ctx context.Context, stationID int) (*telemetry.ParsedTransmission, error) {
	var (
		t                  telemetry.ParsedTransmission
		transmit, received string
	)
	err := r.db.QueryRowContext(ctx, getLatestTransmissionSQL, stationID).Scan(
		&t.TransmissionID, &t.Payload, &transmit, &received,
		&t.Latitude, &t.Longitude, &t.CEP, &t.IMEI, &t.MOMSN, &t.Alarm,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.TransmitTime, err = parseTS(transmit); err != nil {
		return nil, err
	}
	if t.ReceivedAt, err = parseTS(received); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanSamples(rows *sql.Rows) (telemetry.Series, error) {
	var out telemetry.Series
	for rows.Next() {
		var (
			s    telemetry.Sample
			ts   string
			vals = make([]sql.NullFloat64, len(sampleChannels))
		)
		dest := []any{&ts, &s.Slot}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, err
		}
		s.Time = t
		s.Values = make(telemetry.Values)
		for i, v := range vals {
			if v.Valid {
				s.Values[sampleChannels[i]] = v.Float64
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("rollback", "error", err)
	}
}

// tsLayout is fixed width so stored text sorts in time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	if t.IsZero() {
		return t, nil
	}
	return t.In(telemetry.Local), nil
}
