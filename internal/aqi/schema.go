package aqi

import (
	"fmt"
	"strings"
)

// RawTable is a loosely-schemed tabular dataset as delivered by the feature
// store or a backup CSV. Column order is significant: when several columns
// match the same canonical field, the first in input order wins.
type RawTable struct {
	Columns []string
	Rows    [][]any
}

// Schema holds resolved column indexes for the canonical fields.
// Optional fields are -1 when no column matched.
type Schema struct {
	ForecastTimeUTC int
	PredictionRun   int
	AQI             int
	ModelVersion    int
}

// Each rule is a set of tokens that must all appear (case-insensitively) in
// the column name. Rules are tried in priority order.
var (
	forecastTimeRules = [][]string{
		{"datetime", "utc"},
		{"forecast", "utc"},
		{"time", "utc"},
	}
	aqiRules = [][]string{
		{"predicted", "aqi"},
		{"us", "aqi"},
		{"aqi"},
	}
	predictionRunRules = [][]string{
		{"prediction", "date"},
		{"prediction", "timestamp"},
		{"prediction", "time"},
		{"run", "time"},
	}
	modelVersionRules = [][]string{
		{"model", "version"},
	}
)

// ResolveSchema maps raw column names onto the canonical schema.
// forecast_time_utc and aqi_value are mandatory; resolution fails with
// ErrSchema when either has no candidate. prediction_run_time and
// model_version are optional and resolve to -1 when absent.
func ResolveSchema(columns []string) (Schema, error) {
	claimed := make(map[int]bool)

	forecastIdx := matchColumn(columns, forecastTimeRules, claimed)
	if forecastIdx < 0 {
		return Schema{}, fmt.Errorf("%w: forecast_time_utc (columns: %s)", ErrSchema, strings.Join(columns, ", "))
	}
	claimed[forecastIdx] = true

	runIdx := matchColumn(columns, predictionRunRules, claimed)
	if runIdx >= 0 {
		claimed[runIdx] = true
	}

	aqiIdx := matchColumn(columns, aqiRules, claimed)
	if aqiIdx < 0 {
		return Schema{}, fmt.Errorf("%w: aqi_value (columns: %s)", ErrSchema, strings.Join(columns, ", "))
	}
	claimed[aqiIdx] = true

	versionIdx := matchColumn(columns, modelVersionRules, claimed)

	return Schema{
		ForecastTimeUTC: forecastIdx,
		PredictionRun:   runIdx,
		AQI:             aqiIdx,
		ModelVersion:    versionIdx,
	}, nil
}

func matchColumn(columns []string, rules [][]string, claimed map[int]bool) int {
	for _, tokens := range rules {
		for i, col := range columns {
			if claimed[i] {
				continue
			}
			if columnMatches(col, tokens) {
				return i
			}
		}
	}
	return -1
}

func columnMatches(column string, tokens []string) bool {
	lower := strings.ToLower(column)
	for _, tok := range tokens {
		if !strings.Contains(lower, tok) {
			return false
		}
	}
	return true
}
