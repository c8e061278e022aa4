package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/models"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// Location returns the configured display timezone for this store.
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) UpsertLocation(l models.Location) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (code, name, latitude, longitude, timezone, utc_offset, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			utc_offset = excluded.utc_offset,
			active = excluded.active
	`, l.Code, l.Name, l.Latitude, l.Longitude, l.Timezone, l.UTCOffset, l.Active)
	return err
}

func (s *Store) GetLocation(code string) (*models.Location, error) {
	row := s.db.QueryRow(`SELECT code, name, latitude, longitude, timezone, utc_offset, active FROM locations WHERE code = ?`, code)

	var l models.Location
	err := row.Scan(&l.Code, &l.Name, &l.Latitude, &l.Longitude, &l.Timezone, &l.UTCOffset, &l.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertRun persists a prediction run and its forecast rows in one
// transaction. Re-ingesting a run that already exists is a no-op; the
// existing run ID is returned so callers stay idempotent across polls.
func (s *Store) InsertRun(run models.PredictionRun, records []models.ForecastRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO prediction_runs (location_code, run_time, model_version, fetched_at, source, row_count, dropped_timestamps, dropped_aqi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_code, run_time) DO NOTHING
	`, run.LocationCode, run.RunTime.UTC(), run.ModelVersion, run.FetchedAt.UTC(), run.Source, run.RowCount, run.DroppedTimestamps, run.DroppedAQI)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	var runID int64
	if affected > 0 {
		runID, err = result.LastInsertId()
		if err != nil {
			return 0, err
		}
	} else {
		err = tx.QueryRow(`SELECT id FROM prediction_runs WHERE location_code = ? AND run_time = ?`,
			run.LocationCode, run.RunTime.UTC()).Scan(&runID)
		if err != nil {
			return 0, fmt.Errorf("lookup existing run: %w", err)
		}
	}

	for _, rec := range records {
		_, err := tx.Exec(`
			INSERT INTO forecasts (run_id, forecast_time_utc, aqi, category)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, forecast_time_utc) DO UPDATE SET
				aqi = excluded.aqi,
				category = excluded.category
		`, runID, rec.ForecastTimeUTC.UTC(), rec.AQI, rec.Category)
		if err != nil {
			return 0, fmt.Errorf("insert forecast row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func (s *Store) GetLatestRun(locationCode string) (*models.PredictionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, location_code, run_time, model_version, fetched_at, source, row_count, dropped_timestamps, dropped_aqi, created_at
		FROM prediction_runs
		WHERE location_code = ?
		ORDER BY run_time DESC
		LIMIT 1
	`, locationCode)
	return scanRun(row)
}

func (s *Store) GetRun(id int64) (*models.PredictionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, location_code, run_time, model_version, fetched_at, source, row_count, dropped_timestamps, dropped_aqi, created_at
		FROM prediction_runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*models.PredictionRun, error) {
	var r models.PredictionRun
	err := row.Scan(&r.ID, &r.LocationCode, &r.RunTime, &r.ModelVersion, &r.FetchedAt,
		&r.Source, &r.RowCount, &r.DroppedTimestamps, &r.DroppedAQI, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.RunTime = r.RunTime.UTC()
	r.FetchedAt = r.FetchedAt.UTC()
	return &r, nil
}

func (s *Store) ListRuns(locationCode string, limit int) ([]models.PredictionRun, error) {
	rows, err := s.db.Query(`
		SELECT id, location_code, run_time, model_version, fetched_at, source, row_count, dropped_timestamps, dropped_aqi, created_at
		FROM prediction_runs
		WHERE location_code = ?
		ORDER BY run_time DESC
		LIMIT ?
	`, locationCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.PredictionRun
	for rows.Next() {
		var r models.PredictionRun
		if err := rows.Scan(&r.ID, &r.LocationCode, &r.RunTime, &r.ModelVersion, &r.FetchedAt,
			&r.Source, &r.RowCount, &r.DroppedTimestamps, &r.DroppedAQI, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.RunTime = r.RunTime.UTC()
		r.FetchedAt = r.FetchedAt.UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) GetRunForecasts(runID int64) ([]models.ForecastRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, forecast_time_utc, aqi, category
		FROM forecasts
		WHERE run_id = ?
		ORDER BY forecast_time_utc ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ForecastRecord
	for rows.Next() {
		var rec models.ForecastRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ForecastTimeUTC, &rec.AQI, &rec.Category); err != nil {
			return nil, err
		}
		rec.ForecastTimeUTC = rec.ForecastTimeUTC.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) UpsertAdvisory(a models.Advisory) error {
	_, err := s.db.Exec(`
		INSERT INTO advisories (run_id, peak_category, body, model)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, peak_category) DO UPDATE SET
			body = excluded.body,
			model = excluded.model
	`, a.RunID, a.PeakCategory, a.Body, a.Model)
	return err
}

func (s *Store) GetAdvisory(runID int64) (*models.Advisory, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, peak_category, body, model, created_at
		FROM advisories
		WHERE run_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, runID)

	var a models.Advisory
	err := row.Scan(&a.ID, &a.RunID, &a.PeakCategory, &a.Body, &a.Model, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
