package models

import (
	"database/sql"
	"time"
)

// Location is a monitored city the forecasting model produces predictions for.
type Location struct {
	Code      string
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string // fixed-offset display zone label, e.g. "PKT"
	UTCOffset int    // seconds east of UTC
	Active    bool
}

// PredictionRun is one persisted inference batch for a location.
type PredictionRun struct {
	ID                int64
	LocationCode      string
	RunTime           time.Time
	ModelVersion      string
	FetchedAt         time.Time
	Source            string // "featurestore" or "csv_archive"
	RowCount          int
	DroppedTimestamps int
	DroppedAQI        int
	CreatedAt         time.Time
}

// ForecastRecord is one persisted forecast row belonging to a prediction run.
type ForecastRecord struct {
	ID              int64
	RunID           int64
	ForecastTimeUTC time.Time
	AQI             int
	Category        string
}

// Advisory is a generated plain-language health advisory for one run.
type Advisory struct {
	ID           int64
	RunID        int64
	PeakCategory string
	Body         string
	Model        sql.NullString
	CreatedAt    time.Time
}
