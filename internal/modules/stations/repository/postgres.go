package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

//go:embed pgsql/schema.sql
var postgresSchemaSQL string

const (
	pgUpsertStationSQL = `INSERT INTO stations (id, generation, address, imei, latitude, longitude, cep)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET generation = EXCLUDED.generation,
    address = EXCLUDED.address,
    imei = EXCLUDED.imei,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    cep = EXCLUDED.cep`

	pgInsertTransmissionSQL = `INSERT INTO transmissions (station_id, transmission_id, payload, transmit_time, received_at,
    latitude, longitude, cep, imei, momsn, alarm, sample_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (station_id, transmission_id) DO NOTHING`

	pgUpsertSampleSQL = `INSERT INTO samples (station_id, ts, slot, sensor_1, sensor_2, sensor_3, reference, weight_lbs, current_a, voltage_v)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (station_id, ts) DO UPDATE
SET slot = EXCLUDED.slot,
    sensor_1 = EXCLUDED.sensor_1,
    sensor_2 = EXCLUDED.sensor_2,
    sensor_3 = EXCLUDED.sensor_3,
    reference = EXCLUDED.reference,
    weight_lbs = EXCLUDED.weight_lbs,
    current_a = EXCLUDED.current_a,
    voltage_v = EXCLUDED.voltage_v`

	pgSampleColumns = `ts, slot, sensor_1, sensor_2, sensor_3, reference, weight_lbs, current_a, voltage_v`
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository stores stations in PostgreSQL. Call EnsureSchema
// once before use.
func NewPostgresRepository(pool *pgxpool.Pool) StationRepository {
	return &postgresRepository{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpsertStations(ctx context.Context, stations []telemetry.Station) error {
	if len(stations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range stations {
		batch.Queue(pgUpsertStationSQL, s.Number, s.Generation.String(), s.Address, s.IMEI(), s.Latitude, s.Longitude, s.CEP)
	}

	res := r.pool.SendBatch(ctx, batch)
	defer res.Close()

	for _, s := range stations {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert station %d: %w", s.Number, err)
		}
	}
	return nil
}

func (r *postgresRepository) GetStations(ctx context.Context) ([]telemetry.Station, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, generation, address, latitude, longitude, cep FROM stations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func (r *postgresRepository) HasTransmission(ctx context.Context, stationID int, transmissionID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transmissions WHERE station_id = $1 AND transmission_id = $2)`,
		stationID, transmissionID,
	).Scan(&ok)
	return ok, err
}

func (r *postgresRepository) SaveUpdate(ctx context.Context, update telemetry.Update) error {
	stationID := update.Station.Number
	t := update.Transmission

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback", "station_id", stationID, "error", err)
		}
	}()

	batch := &pgx.Batch{}
	batch.Queue(pgInsertTransmissionSQL,
		stationID, t.TransmissionID, t.Payload, t.TransmitTime.UTC(), t.ReceivedAt.UTC(),
		t.Latitude, t.Longitude, t.CEP, t.IMEI, t.MOMSN, t.Alarm, len(update.Samples),
	)
	for _, s := range update.Samples {
		args := append([]any{stationID, s.Time.UTC(), s.Slot}, channelArgs(s.Values)...)
		batch.Queue(pgUpsertSampleSQL, args...)
	}

	res := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			_ = res.Close()
			return fmt.Errorf("save update %q (statement %d): %w", t.TransmissionID, i, err)
		}
	}
	if err := res.Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetSeries(ctx context.Context, stationID int) (telemetry.Series, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+pgSampleColumns+` FROM samples WHERE station_id = $1 ORDER BY ts ASC`, stationID)
	if err != nil {
		return nil, err
	}
	return scanPgSamples(rows)
}

func (r *postgresRepository) GetSamples(ctx context.Context, stationID int, limit int) (telemetry.Series, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pgSampleColumns+` FROM (
    SELECT * FROM samples WHERE station_id = $1 ORDER BY ts DESC LIMIT $2
) latest ORDER BY ts ASC`, stationID, limit)
	if err != nil {
		return nil, err
	}
	return scanPgSamples(rows)
}

func (r *postgresRepository) GetLatestTransmission(ctx context.Context, stationID int) (*telemetry.ParsedTransmission, error) {
	var t telemetry.ParsedTransmission
	err := r.pool.QueryRow(ctx, `SELECT transmission_id, payload, transmit_time, received_at, latitude, longitude, cep, imei, momsn, alarm
FROM transmissions
WHERE station_id = $1
ORDER BY received_at DESC, transmit_time DESC
LIMIT 1`, stationID).Scan(
		&t.TransmissionID, &t.Payload, &t.TransmitTime, &t.ReceivedAt,
		&t.Latitude, &t.Longitude, &t.CEP, &t.IMEI, &t.MOMSN, &t.Alarm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.TransmitTime = inLocal(t.TransmitTime)
	t.ReceivedAt = inLocal(t.ReceivedAt)
	return &t, nil
}

func scanPgSamples(rows pgx.Rows) (telemetry.Series, error) {
	defer rows.Close()

	var out telemetry.Series
	for rows.Next() {
		var (
			s    telemetry.Sample
			vals = make([]*float64, len(sampleChannels))
		)
		dest := []any{&s.Time, &s.Slot}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		s.Time = inLocal(s.Time)
		s.Values = make(telemetry.Values)
		for i, v := range vals {
			if v != nil {
				s.Values[sampleChannels[i]] = *v
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func inLocal(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(telemetry.Local)
}
