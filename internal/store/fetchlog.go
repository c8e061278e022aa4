package store

import (
	"database/sql"
	"time"
)

// FetchRun records a single upstream fetch attempt for auditing.
type FetchRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Source       string // "featurestore", "csv_archive"
	LocationCode sql.NullString
	RowsFetched  sql.NullInt64
	RowsStored   sql.NullInt64
	RowsDropped  sql.NullInt64
	Success      bool
	ErrorMessage sql.NullString
}

// StartFetchRun creates a new fetch log entry and returns it.
func (s *Store) StartFetchRun(source, locationCode string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
	}
	if locationCode != "" {
		run.LocationCode = sql.NullString{String: locationCode, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_log (started_at, source, location_code, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.LocationCode)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun updates the fetch log entry with results.
func (s *Store) CompleteFetchRun(run *FetchRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE fetch_log SET
			finished_at = ?,
			rows_fetched = ?,
			rows_stored = ?,
			rows_dropped = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RowsFetched, run.RowsStored, run.RowsDropped,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// GetRecentFetchErrors returns recent failed fetch runs, newest first.
func (s *Store) GetRecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source, location_code,
			   rows_fetched, rows_stored, rows_dropped, success, error_message
		FROM fetch_log
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.LocationCode,
			&r.RowsFetched, &r.RowsStored, &r.RowsDropped, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
