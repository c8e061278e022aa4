package aqi

import "errors"

// Pipeline errors. Row-scoped failures (bad timestamps, bad AQI values) are
// never surfaced as errors; they are dropped and counted on the Result.
var (
	ErrSchema      = errors.New("mandatory column not found")
	ErrNoData      = errors.New("no forecast data")
	ErrAQIRange    = errors.New("aqi value out of range")
	ErrEmptySeries = errors.New("empty forecast series")
)
