// Package aqi normalizes raw AQI prediction tables into canonical,
// timezone-correct, categorized forecast series. Every operation is a pure
// function over in-memory data; fetching, caching and persistence belong to
// the callers in internal/ingest and internal/store.
package aqi

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DisplayZone is the default fixed-offset zone forecast times are projected
// into for presentation. Rawalpindi uses PKT (UTC+5, no DST).
var DisplayZone = time.FixedZone("PKT", 5*60*60)

// ForecastRow is one predicted AQI value for one future instant, produced by
// one inference run.
type ForecastRow struct {
	ForecastTimeUTC   time.Time
	ForecastTimeLocal time.Time
	PredictionRun     time.Time
	AQI               int
	Category          Category
	Color             string
	ModelVersion      string
}

// ForecastSeries is an ordered sequence of rows belonging to exactly one
// prediction run, ascending by ForecastTimeUTC.
type ForecastSeries struct {
	PredictionRun time.Time
	Rows          []ForecastRow
}

// Options control timezone handling during normalization.
type Options struct {
	// Display is the fixed-offset zone for the local view of forecast times.
	// Defaults to DisplayZone (PKT).
	Display *time.Location

	// Naive is the zone assumed for timestamps that carry no explicit offset.
	// Defaults to UTC, which matches how the inference pipeline writes the
	// feature group. Misconfiguring the source zone silently produces wrong
	// local times, so deployments must set this deliberately.
	Naive *time.Location
}

func (o Options) display() *time.Location {
	if o.Display != nil {
		return o.Display
	}
	return DisplayZone
}

func (o Options) naive() *time.Location {
	if o.Naive != nil {
		return o.Naive
	}
	return time.UTC
}

// Result carries the normalized series plus row-drop accounting. Dropped
// rows degrade gracefully: they never fail the whole call, but the counts
// must reach the caller so data-quality problems stay visible.
type Result struct {
	Series            ForecastSeries
	DroppedTimestamps int
	DroppedAQI        int
	NoData            bool
}

// Normalize runs the full pipeline over a raw table: resolve columns, parse
// and anchor timestamps, drop invalid rows, deduplicate forecast instants
// (last wins), keep only the most recent prediction run, sort ascending and
// classify. A schema failure is fatal; an empty outcome sets NoData.
func Normalize(raw RawTable, opts Options) (Result, error) {
	schema, err := ResolveSchema(raw.Columns)
	if err != nil {
		return Result{}, err
	}

	var result Result
	rows := make([]ForecastRow, 0, len(raw.Rows))

	for _, record := range raw.Rows {
		if schema.ForecastTimeUTC >= len(record) {
			result.DroppedTimestamps++
			continue
		}

		forecastUTC, err := parseInstant(record[schema.ForecastTimeUTC], opts.naive())
		if err != nil {
			result.DroppedTimestamps++
			continue
		}

		var run time.Time
		if schema.PredictionRun >= 0 {
			if schema.PredictionRun >= len(record) {
				result.DroppedTimestamps++
				continue
			}
			run, err = parseInstant(record[schema.PredictionRun], opts.naive())
			if err != nil {
				result.DroppedTimestamps++
				continue
			}
		}

		if schema.AQI >= len(record) {
			result.DroppedAQI++
			continue
		}
		value, err := parseAQI(record[schema.AQI])
		if err != nil {
			result.DroppedAQI++
			continue
		}

		category, err := Classify(value)
		if err != nil {
			result.DroppedAQI++
			continue
		}

		version := "unknown"
		if schema.ModelVersion >= 0 && schema.ModelVersion < len(record) {
			if s, ok := record[schema.ModelVersion].(string); ok && s != "" {
				version = s
			}
		}

		rows = append(rows, ForecastRow{
			ForecastTimeUTC:   forecastUTC,
			ForecastTimeLocal: forecastUTC.In(opts.display()),
			PredictionRun:     run,
			AQI:               value,
			Category:          category,
			Color:             CategoryColor(category),
			ModelVersion:      version,
		})
	}

	rows = LatestRun(rows)
	rows = dedupeForecastTimes(rows)

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ForecastTimeUTC.Before(rows[j].ForecastTimeUTC)
	})

	if len(rows) == 0 {
		result.NoData = true
		return result, nil
	}

	result.Series = ForecastSeries{
		PredictionRun: rows[0].PredictionRun,
		Rows:          rows,
	}
	return result, nil
}

// LatestRun restricts rows to the subset sharing the maximum prediction run
// time. Applying it to an already-single-run slice returns the rows
// unchanged, so the selection is idempotent.
func LatestRun(rows []ForecastRow) []ForecastRow {
	if len(rows) == 0 {
		return rows
	}

	latest := rows[0].PredictionRun
	for _, r := range rows[1:] {
		if r.PredictionRun.After(latest) {
			latest = r.PredictionRun
		}
	}

	kept := rows[:0:0]
	for _, r := range rows {
		if r.PredictionRun.Equal(latest) {
			kept = append(kept, r)
		}
	}
	return kept
}

// dedupeForecastTimes keeps the last row in input order for each distinct
// forecast instant.
func dedupeForecastTimes(rows []ForecastRow) []ForecastRow {
	if len(rows) < 2 {
		return rows
	}

	index := make(map[int64]int, len(rows))
	kept := make([]ForecastRow, 0, len(rows))
	for _, r := range rows {
		key := r.ForecastTimeUTC.UnixNano()
		if at, ok := index[key]; ok {
			kept[at] = r
			continue
		}
		index[key] = len(kept)
		kept = append(kept, r)
	}
	return kept
}

// naiveLayouts are timestamp shapes with no offset information, tried in
// order after the offset-aware layouts fail.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseInstant converts a raw timestamp value into a UTC instant. Values
// with an explicit offset are converted; values without one are anchored to
// the naive zone. Epoch numbers above 1e12 are taken as milliseconds, which
// is how the feature store serializes event-time columns.
func parseInstant(v any, naive *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("zero timestamp")
		}
		return t.UTC(), nil
	case float64:
		return epochToTime(int64(t)), nil
	case int64:
		return epochToTime(t), nil
	case int:
		return epochToTime(int64(t)), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, fmt.Errorf("empty timestamp")
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return parsed.UTC(), nil
		}
		for _, layout := range naiveLayouts {
			if parsed, err := time.ParseInLocation(layout, s, naive); err == nil {
				return parsed.UTC(), nil
			}
		}
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(epoch), nil
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func epochToTime(epoch int64) time.Time {
	if epoch > 1e12 {
		return time.UnixMilli(epoch).UTC()
	}
	return time.Unix(epoch, 0).UTC()
}

// parseAQI converts a raw AQI value to a rounded integer. Fractional model
// output rounds to nearest; missing or non-numeric values are invalid and
// never substituted with zero.
func parseAQI(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return roundAQI(n)
	case float32:
		return roundAQI(float64(n))
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("empty aqi value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric aqi value %q", s)
		}
		return roundAQI(f)
	case nil:
		return 0, fmt.Errorf("missing aqi value")
	default:
		return 0, fmt.Errorf("unsupported aqi type %T", v)
	}
}

func roundAQI(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite aqi value")
	}
	return int(math.Round(f)), nil
}
