package api_test

import (
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/api"
	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/models"
	"github.com/mhaseeb/pindiaqi/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db, aqi.DisplayZone)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func seedRun(t *testing.T, s *store.Store) int64 {
	t.Helper()
	runTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := models.PredictionRun{
		LocationCode: "RWP",
		RunTime:      runTime,
		ModelVersion: "v3",
		FetchedAt:    runTime.Add(30 * time.Minute),
		Source:       "featurestore",
		RowCount:     3,
	}
	records := []models.ForecastRecord{
		{ForecastTimeUTC: runTime.Add(5 * time.Hour), AQI: 45, Category: "Good"},
		{ForecastTimeUTC: runTime.Add(6 * time.Hour), AQI: 152, Category: "Unhealthy"},
		{ForecastTimeUTC: runTime.Add(7 * time.Hour), AQI: 130, Category: "Unhealthy for Sensitive Groups"},
	}
	id, err := s.InsertRun(run, records)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newTestServer(s *store.Store) *api.Server {
	return api.NewServer(s, "8080", "RWP", aqi.DisplayZone)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status"`) {
		t.Error("expected status field in JSON response")
	}
}

func TestForecast_NoData(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/forecast", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 404 {
		t.Fatalf("expected 404 with empty store, got %d", w.Code)
	}
}

func TestForecast_WithData(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/forecast", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Run struct {
			Location     string `json:"location"`
			ModelVersion string `json:"model_version"`
		} `json:"run"`
		Rows []struct {
			AQI      int    `json:"aqi"`
			Category string `json:"category"`
			Color    string `json:"color"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Run.Location != "RWP" || resp.Run.ModelVersion != "v3" {
		t.Errorf("run = %+v", resp.Run)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(resp.Rows))
	}
	if resp.Rows[0].AQI != 45 || resp.Rows[0].Category != "Good" {
		t.Errorf("first row = %+v", resp.Rows[0])
	}
	if resp.Rows[1].Color != "#ff0000" {
		t.Errorf("Unhealthy color = %q", resp.Rows[1].Color)
	}
}

func TestForecast_Window(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	// Rows sit at 05:00-07:00 UTC; bound the window to the middle row.
	req := httptest.NewRequest("GET",
		"/api/forecast?start=2024-01-01T06:00:00Z&end=2024-01-01T06:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Rows          []struct{ AQI int }
		WindowSwapped bool `json:"window_swapped"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].AQI != 152 {
		t.Errorf("window rows = %+v", resp.Rows)
	}
	if resp.WindowSwapped {
		t.Error("expected no swap for ordered bounds")
	}
}

func TestForecast_ReversedWindow(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET",
		"/api/forecast?start=2024-01-01T07:00:00Z&end=2024-01-01T05:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Rows          []struct{ AQI int }
		WindowSwapped bool `json:"window_swapped"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 3 {
		t.Errorf("expected all 3 rows after swap, got %d", len(resp.Rows))
	}
	if !resp.WindowSwapped {
		t.Error("expected window_swapped to be set")
	}
}

func TestForecast_BadWindowParam(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/forecast?start=notatime", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("expected 400 for bad start, got %d", w.Code)
	}
}

func TestCurrent_NearestRow(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	// 05:40 UTC is nearest to the 06:00 row.
	req := httptest.NewRequest("GET", "/api/current?at=2024-01-01T05:40:00Z", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Row struct {
			AQI      int    `json:"aqi"`
			Category string `json:"category"`
		} `json:"row"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Row.AQI != 152 || resp.Row.Category != "Unhealthy" {
		t.Errorf("current row = %+v", resp.Row)
	}
}

func TestCurrent_BadAtParam(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/current?at=yesterday", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("expected 400 for bad at, got %d", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var runs []struct {
		Location string `json:"location"`
		RowCount int    `json:"row_count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Location != "RWP" || runs[0].RowCount != 3 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/categories", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var cats []struct {
		Category string `json:"category"`
		Color    string `json:"color"`
		MinAQI   int    `json:"min_aqi"`
		MaxAQI   int    `json:"max_aqi"`
	}
	if err := json.NewDecoder(w.Body).Decode(&cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != 6 {
		t.Fatalf("expected 6 categories, got %d", len(cats))
	}
	if cats[0].Category != "Good" || cats[0].MinAQI != 0 || cats[0].MaxAQI != 50 {
		t.Errorf("first category = %+v", cats[0])
	}
	if cats[5].Category != "Hazardous" || cats[5].MaxAQI != 500 {
		t.Errorf("last category = %+v", cats[5])
	}
}

func TestAdvisory_NotFound(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedRun(t, s)
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/advisory", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 404 {
		t.Fatalf("expected 404 without advisory, got %d", w.Code)
	}
}

func TestAdvisory_WithData(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	runID := seedRun(t, s)
	if err := s.UpsertAdvisory(models.Advisory{
		RunID:        runID,
		PeakCategory: "Unhealthy",
		Body:         "Limit time outdoors this evening.",
	}); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(s)

	req := httptest.NewRequest("GET", "/api/advisory", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		PeakCategory string `json:"peak_category"`
		Body         string `json:"body"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.PeakCategory != "Unhealthy" || !strings.Contains(resp.Body, "outdoors") {
		t.Errorf("advisory = %+v", resp)
	}
}
