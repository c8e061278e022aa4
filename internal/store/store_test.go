package store_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/models"
	"github.com/mhaseeb/pindiaqi/internal/store"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db, time.UTC)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := setupStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	version, err := s.MigrationVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version < 4 {
		t.Errorf("migration version = %d, want >= 4", version)
	}
}

func TestUpsertLocation(t *testing.T) {
	s := setupStore(t)

	loc := models.Location{Code: "RWP", Name: "Rawalpindi", Latitude: 33.6, Longitude: 73.07, Timezone: "PKT", UTCOffset: 5 * 3600, Active: true}
	if err := s.UpsertLocation(loc); err != nil {
		t.Fatal(err)
	}

	loc.Name = "Rawalpindi (Urban)"
	if err := s.UpsertLocation(loc); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetLocation("RWP")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Rawalpindi (Urban)" {
		t.Errorf("GetLocation = %+v, want updated name", got)
	}
}

func TestGetLocationMissing(t *testing.T) {
	s := setupStore(t)
	got, err := s.GetLocation("XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing location, got %+v", got)
	}
}

func testRun(runTime time.Time) models.PredictionRun {
	return models.PredictionRun{
		LocationCode: "RWP",
		RunTime:      runTime,
		ModelVersion: "v3",
		FetchedAt:    runTime.Add(30 * time.Minute),
		Source:       "featurestore",
		RowCount:     2,
	}
}

func testRecords(runTime time.Time) []models.ForecastRecord {
	return []models.ForecastRecord{
		{ForecastTimeUTC: runTime.Add(5 * time.Hour), AQI: 45, Category: "Good"},
		{ForecastTimeUTC: runTime.Add(6 * time.Hour), AQI: 152, Category: "Unhealthy"},
	}
}

func TestInsertRunAndReadBack(t *testing.T) {
	s := setupStore(t)
	runTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runID, err := s.InsertRun(testRun(runTime), testRecords(runTime))
	if err != nil {
		t.Fatal(err)
	}
	if runID == 0 {
		t.Fatal("expected nonzero run ID")
	}

	latest, err := s.GetLatestRun("RWP")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != runID {
		t.Fatalf("GetLatestRun = %+v, want run %d", latest, runID)
	}
	if !latest.RunTime.Equal(runTime) {
		t.Errorf("run time = %v, want %v", latest.RunTime, runTime)
	}

	records, err := s.GetRunForecasts(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].AQI != 45 || records[0].Category != "Good" {
		t.Errorf("first record = %+v", records[0])
	}
	if !records[0].ForecastTimeUTC.Before(records[1].ForecastTimeUTC) {
		t.Error("records not in ascending forecast time order")
	}
}

func TestInsertRunIdempotent(t *testing.T) {
	s := setupStore(t)
	runTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.InsertRun(testRun(runTime), testRecords(runTime))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.InsertRun(testRun(runTime), testRecords(runTime))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("re-insert created a new run: %d vs %d", first, second)
	}

	records, err := s.GetRunForecasts(first)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records after re-insert, got %d", len(records))
	}
}

func TestGetLatestRunPicksMaxRunTime(t *testing.T) {
	s := setupStore(t)
	older := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.InsertRun(testRun(newer), testRecords(newer)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertRun(testRun(older), testRecords(older)); err != nil {
		t.Fatal(err)
	}

	latest, err := s.GetLatestRun("RWP")
	if err != nil {
		t.Fatal(err)
	}
	if !latest.RunTime.Equal(newer) {
		t.Errorf("latest run time = %v, want %v", latest.RunTime, newer)
	}

	runs, err := s.ListRuns("RWP", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].RunTime.After(runs[1].RunTime) {
		t.Error("runs not ordered newest first")
	}
}

func TestGetLatestRunEmpty(t *testing.T) {
	s := setupStore(t)
	latest, err := s.GetLatestRun("RWP")
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Errorf("expected nil latest run, got %+v", latest)
	}
}

func TestRawPayloadRoundTrip(t *testing.T) {
	s := setupStore(t)
	payload := []byte(`{"columns":["datetime_utc"],"rows":[]}`)

	id, err := s.StoreRawPayload("featurestore", "aqi_predictions/1", "RWP", payload)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected nonzero payload ID")
	}

	// Same bytes hash identically and are not stored twice.
	dup, err := s.StoreRawPayload("featurestore", "aqi_predictions/1", "RWP", payload)
	if err != nil {
		t.Fatal(err)
	}
	if dup != 0 {
		t.Errorf("duplicate payload stored with ID %d", dup)
	}

	meta, body, err := s.GetRawPayload(id)
	if err != nil {
		t.Fatal(err)
	}
	if meta == nil {
		t.Fatal("payload not found")
	}
	if string(body) != string(payload) {
		t.Errorf("payload body = %q, want %q", body, payload)
	}
	if meta.Source != "featurestore" {
		t.Errorf("source = %q", meta.Source)
	}
}

func TestFetchLog(t *testing.T) {
	s := setupStore(t)

	run, err := s.StartFetchRun("featurestore", "RWP")
	if err != nil {
		t.Fatal(err)
	}

	run.RowsFetched = sql.NullInt64{Int64: 74, Valid: true}
	run.RowsStored = sql.NullInt64{Int64: 72, Valid: true}
	run.RowsDropped = sql.NullInt64{Int64: 2, Valid: true}
	run.Success = false
	run.ErrorMessage = sql.NullString{String: "feature store timeout", Valid: true}
	if err := s.CompleteFetchRun(run); err != nil {
		t.Fatal(err)
	}

	errors, err := s.GetRecentFetchErrors(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(errors) != 1 {
		t.Fatalf("expected 1 failed fetch, got %d", len(errors))
	}
	if errors[0].ErrorMessage.String != "feature store timeout" {
		t.Errorf("error message = %q", errors[0].ErrorMessage.String)
	}
}

func TestAdvisoryUpsert(t *testing.T) {
	s := setupStore(t)
	runTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runID, err := s.InsertRun(testRun(runTime), testRecords(runTime))
	if err != nil {
		t.Fatal(err)
	}

	a := models.Advisory{RunID: runID, PeakCategory: "Unhealthy", Body: "Limit outdoor activity."}
	if err := s.UpsertAdvisory(a); err != nil {
		t.Fatal(err)
	}

	a.Body = "Sensitive groups should stay indoors."
	if err := s.UpsertAdvisory(a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAdvisory(runID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "Sensitive groups should stay indoors." {
		t.Errorf("GetAdvisory = %+v, want updated body", got)
	}
}
