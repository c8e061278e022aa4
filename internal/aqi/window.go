package aqi

import "time"

// FilterWindow returns the inclusive sub-series with
// start <= ForecastTimeLocal <= end. Reversed bounds are swapped rather than
// rejected; the returned bool reports that the swap happened so callers can
// surface a notice. An empty result is valid and distinct from an error.
func FilterWindow(s ForecastSeries, start, end time.Time) (ForecastSeries, bool) {
	swapped := false
	if start.After(end) {
		start, end = end, start
		swapped = true
	}

	filtered := ForecastSeries{PredictionRun: s.PredictionRun}
	for _, r := range s.Rows {
		if r.ForecastTimeLocal.Before(start) || r.ForecastTimeLocal.After(end) {
			continue
		}
		filtered.Rows = append(filtered.Rows, r)
	}
	return filtered, swapped
}

// Nearest returns the single row whose local forecast time is closest to
// now. Exact ties resolve to the earlier forecast time. An empty series
// fails with ErrEmptySeries; callers must check or handle.
func Nearest(s ForecastSeries, now time.Time) (ForecastRow, error) {
	if len(s.Rows) == 0 {
		return ForecastRow{}, ErrEmptySeries
	}

	best := s.Rows[0]
	bestDist := absDuration(best.ForecastTimeLocal.Sub(now))
	for _, r := range s.Rows[1:] {
		d := absDuration(r.ForecastTimeLocal.Sub(now))
		if d < bestDist || (d == bestDist && r.ForecastTimeLocal.Before(best.ForecastTimeLocal)) {
			best = r
			bestDist = d
		}
	}
	return best, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
