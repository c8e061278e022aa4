package api

import (
	"time"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/models"
)

type RunView struct {
	ID                int64     `json:"id"`
	Location          string    `json:"location"`
	RunTime           time.Time `json:"run_time"`
	ModelVersion      string    `json:"model_version"`
	Source            string    `json:"source"`
	FetchedAt         time.Time `json:"fetched_at"`
	RowCount          int       `json:"row_count"`
	DroppedTimestamps int       `json:"dropped_timestamps"`
	DroppedAQI        int       `json:"dropped_aqi"`
}

type RowView struct {
	ForecastTimeUTC   time.Time `json:"forecast_time_utc"`
	ForecastTimeLocal time.Time `json:"forecast_time_local"`
	AQI               int       `json:"aqi"`
	Category          string    `json:"category"`
	Color             string    `json:"color"`
}

type ForecastResponse struct {
	Run           RunView   `json:"run"`
	Rows          []RowView `json:"rows"`
	WindowSwapped bool      `json:"window_swapped,omitempty"`
}

type CurrentResponse struct {
	Run RunView `json:"run"`
	Row RowView `json:"row"`
}

type CategoryView struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	MinAQI   int    `json:"min_aqi"`
	MaxAQI   int    `json:"max_aqi"`
}

type AdvisoryResponse struct {
	RunID        int64     `json:"run_id"`
	PeakCategory string    `json:"peak_category"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

func runView(run *models.PredictionRun) RunView {
	return RunView{
		ID:                run.ID,
		Location:          run.LocationCode,
		RunTime:           run.RunTime,
		ModelVersion:      run.ModelVersion,
		Source:            run.Source,
		FetchedAt:         run.FetchedAt,
		RowCount:          run.RowCount,
		DroppedTimestamps: run.DroppedTimestamps,
		DroppedAQI:        run.DroppedAQI,
	}
}

func rowView(r aqi.ForecastRow) RowView {
	return RowView{
		ForecastTimeUTC:   r.ForecastTimeUTC,
		ForecastTimeLocal: r.ForecastTimeLocal,
		AQI:               r.AQI,
		Category:          string(r.Category),
		Color:             r.Color,
	}
}

// seriesFromRecords rebuilds an in-memory series from stored rows, projecting
// local times through the server's display zone.
func seriesFromRecords(run *models.PredictionRun, records []models.ForecastRecord, loc *time.Location) aqi.ForecastSeries {
	series := aqi.ForecastSeries{PredictionRun: run.RunTime}
	for _, rec := range records {
		category := aqi.Category(rec.Category)
		series.Rows = append(series.Rows, aqi.ForecastRow{
			ForecastTimeUTC:   rec.ForecastTimeUTC,
			ForecastTimeLocal: rec.ForecastTimeUTC.In(loc),
			PredictionRun:     run.RunTime,
			AQI:               rec.AQI,
			Category:          category,
			Color:             aqi.CategoryColor(category),
			ModelVersion:      run.ModelVersion,
		})
	}
	return series
}
