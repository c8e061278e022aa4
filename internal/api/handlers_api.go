package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	if run, err := s.store.GetLatestRun(s.locationCode); err == nil && run != nil {
		health["latest_run"] = run.RunTime
		health["fetched_at"] = run.FetchedAt
	}
	if failures, err := s.store.GetRecentFetchErrors(5); err == nil {
		health["recent_fetch_errors"] = len(failures)
	}
	writeJSON(w, health)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	run, series, ok := s.latestSeries(w)
	if !ok {
		return
	}

	resp := ForecastResponse{Run: runView(run)}

	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")
	if startParam != "" || endParam != "" {
		start, end, err := parseWindow(startParam, endParam, series, s.loc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		series, resp.WindowSwapped = aqi.FilterWindow(series, start, end)
	}

	for _, row := range series.Rows {
		resp.Rows = append(resp.Rows, rowView(row))
	}
	writeJSON(w, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	run, series, ok := s.latestSeries(w)
	if !ok {
		return
	}

	now := time.Now().In(s.loc)
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			http.Error(w, "invalid at parameter", http.StatusBadRequest)
			return
		}
		now = parsed.In(s.loc)
	}

	row, err := aqi.Nearest(series, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, CurrentResponse{Run: runView(run), Row: rowView(row)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(s.locationCode, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]RunView, 0, len(runs))
	for i := range runs {
		views = append(views, runView(&runs[i]))
	}
	writeJSON(w, views)
}

// aqiBounds mirrors the classification breakpoints for the legend.
var aqiBounds = map[aqi.Category][2]int{
	aqi.CategoryGood:      {0, 50},
	aqi.CategoryModerate:  {51, 100},
	aqi.CategorySensitive: {101, 150},
	aqi.CategoryUnhealthy: {151, 200},
	aqi.CategoryVery:      {201, 300},
	aqi.CategoryHazardous: {301, 500},
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	views := make([]CategoryView, 0, len(aqi.Categories))
	for _, cat := range aqi.Categories {
		bounds := aqiBounds[cat]
		views = append(views, CategoryView{
			Category: string(cat),
			Color:    aqi.CategoryColor(cat),
			MinAQI:   bounds[0],
			MaxAQI:   bounds[1],
		})
	}
	writeJSON(w, views)
}

func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetLatestRun(s.locationCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, aqi.ErrNoData.Error(), http.StatusNotFound)
		return
	}

	advisory, err := s.store.GetAdvisory(run.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if advisory == nil {
		http.Error(w, "no advisory for latest run", http.StatusNotFound)
		return
	}

	writeJSON(w, AdvisoryResponse{
		RunID:        advisory.RunID,
		PeakCategory: advisory.PeakCategory,
		Body:         advisory.Body,
		CreatedAt:    advisory.CreatedAt,
	})
}

// latestSeries loads the latest run and rebuilds its series. On missing data
// it writes a 404 and returns ok=false; an empty window and missing data
// must stay distinguishable for clients.
func (s *Server) latestSeries(w http.ResponseWriter) (*models.PredictionRun, aqi.ForecastSeries, bool) {
	latest, err := s.store.GetLatestRun(s.locationCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, aqi.ForecastSeries{}, false
	}
	if latest == nil {
		http.Error(w, aqi.ErrNoData.Error(), http.StatusNotFound)
		return nil, aqi.ForecastSeries{}, false
	}

	records, err := s.store.GetRunForecasts(latest.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, aqi.ForecastSeries{}, false
	}

	return latest, seriesFromRecords(latest, records, s.loc), true
}

// parseWindow resolves optional start/end query params, defaulting missing
// bounds to the series edges.
func parseWindow(startParam, endParam string, series aqi.ForecastSeries, loc *time.Location) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Time{}
	if len(series.Rows) > 0 {
		start = series.Rows[0].ForecastTimeLocal
		end = series.Rows[len(series.Rows)-1].ForecastTimeLocal
	}

	if startParam != "" {
		parsed, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start parameter: %w", err)
		}
		start = parsed.In(loc)
	}
	if endParam != "" {
		parsed, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end parameter: %w", err)
		}
		end = parsed.In(loc)
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
