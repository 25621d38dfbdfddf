package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/soniakeys/meeus/v3/julian"
	_ "modernc.org/sqlite"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store persists sun summaries.
type Store struct {
	db     *sql.DB
	driver string
}

// OpenStore opens and pings the database.
func OpenStore(driver, connString string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// Every new connection to ":memory:" is a fresh database.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureSchema creates the sun_summaries table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sun_summaries (
			timestamp BIGINT NOT NULL,
			device_id INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			julian_day DOUBLE PRECISION NOT NULL,
			sample_count INTEGER NOT NULL,
			mean_elevation DOUBLE PRECISION,
			max_elevation DOUBLE PRECISION,
			last_azimuth DOUBLE PRECISION,
			sunrise DOUBLE PRECISION,
			sunset DOUBLE PRECISION,
			tracking_fraction DOUBLE PRECISION NOT NULL,
			mode TEXT NOT NULL,
			PRIMARY KEY (device_id, timestamp)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create sun_summaries table: %w", err)
	}
	return nil
}

// SaveSummary stores one summary row, replacing any row for the same device
// and timestamp.
func (s *Store) SaveSummary(ctx context.Context, sessionID string, deviceID int, summary SunSummary) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sun_summaries (
			timestamp,
			device_id,
			session_id,
			julian_day,
			sample_count,
			mean_elevation,
			max_elevation,
			last_azimuth,
			sunrise,
			sunset,
			tracking_fraction,
			mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, timestamp) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			julian_day = EXCLUDED.julian_day,
			sample_count = EXCLUDED.sample_count,
			mean_elevation = EXCLUDED.mean_elevation,
			max_elevation = EXCLUDED.max_elevation,
			last_azimuth = EXCLUDED.last_azimuth,
			sunrise = EXCLUDED.sunrise,
			sunset = EXCLUDED.sunset,
			tracking_fraction = EXCLUDED.tracking_fraction,
			mode = EXCLUDED.mode`),
		summary.Timestamp.Unix(),
		deviceID,
		sessionID,
		julian.TimeToJD(summary.Timestamp.UTC()),
		summary.SampleCount,
		nullFloat(summary.MeanElevationDeg),
		nullFloat(summary.MaxElevationDeg),
		nullFloat(summary.LastAzimuthDeg),
		nullFloat(summary.Sunrise),
		nullFloat(summary.Sunset),
		summary.TrackingFraction,
		string(summary.Mode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

// LoadSummaries returns summaries with timestamp >= since, oldest first.
func (s *Store) LoadSummaries(ctx context.Context, since time.Time) ([]SunSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT
			timestamp,
			sample_count,
			mean_elevation,
			max_elevation,
			last_azimuth,
			sunrise,
			sunset,
			tracking_fraction,
			mode
		FROM sun_summaries
		WHERE timestamp >= ?
		ORDER BY timestamp ASC`), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []SunSummary
	for rows.Next() {
		var summary SunSummary
		var ts int64
		var meanElev, maxElev, lastAz, sunrise, sunset sql.NullFloat64
		var mode string

		err := rows.Scan(
			&ts,
			&summary.SampleCount,
			&meanElev,
			&maxElev,
			&lastAz,
			&sunrise,
			&sunset,
			&summary.TrackingFraction,
			&mode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}

		summary.Timestamp = time.Unix(ts, 0)
		summary.MeanElevationDeg = floatOrNaN(meanElev)
		summary.MaxElevationDeg = floatOrNaN(maxElev)
		summary.LastAzimuthDeg = floatOrNaN(lastAz)
		summary.Sunrise = floatOrNaN(sunrise)
		summary.Sunset = floatOrNaN(sunset)
		summary.Mode = Mode(mode)

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}

// NaN is stored as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
