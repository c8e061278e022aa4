package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/metrics"
	"github.com/mhaseeb/pindiaqi/internal/models"
	"github.com/mhaseeb/pindiaqi/internal/store"
)

// TableReader is the primary prediction source.
type TableReader interface {
	Read() (aqi.RawTable, []byte, error)
	Endpoint() string
}

// ArchiveReader is the fallback prediction source.
type ArchiveReader interface {
	FetchLatest() (aqi.RawTable, []byte, error)
}

// AdvisoryGenerator produces a health advisory for a freshly stored run.
type AdvisoryGenerator interface {
	GenerateForRun(ctx context.Context, runID int64) error
}

type Scheduler struct {
	store    *store.Store
	features TableReader
	archive  ArchiveReader
	cache    *FetchCache
	advisory AdvisoryGenerator
	location models.Location
	opts     aqi.Options
	interval time.Duration
}

func NewScheduler(st *store.Store, features TableReader, archive ArchiveReader, location models.Location, opts aqi.Options, interval time.Duration, cacheTTL time.Duration) *Scheduler {
	return &Scheduler{
		store:    st,
		features: features,
		archive:  archive,
		cache:    NewFetchCache(cacheTTL),
		location: location,
		opts:     opts,
		interval: interval,
	}
}

// SetAdvisoryGenerator enables advisory generation after each stored run.
func (s *Scheduler) SetAdvisoryGenerator(gen AdvisoryGenerator) {
	s.advisory = gen
}

func (s *Scheduler) Run(ctx context.Context) {
	if err := s.IngestOnce(ctx); err != nil {
		log.Printf("ingest: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			if err := s.IngestOnce(ctx); err != nil {
				log.Printf("ingest: %v", err)
			}
		}
	}
}

// IngestOnce pulls the prediction table, normalizes it and persists the
// latest run. Feature-store failures fall back to the fetch cache, then to
// the CSV archive.
func (s *Scheduler) IngestOnce(ctx context.Context) error {
	raw, source, err := s.fetchRaw()
	if err != nil {
		// A total outage must still reach the audit log so /health and
		// GetRecentFetchErrors see it.
		fetchRun, logErr := s.store.StartFetchRun("featurestore", s.location.Code)
		if logErr != nil {
			log.Printf("ingest: start fetch log: %v", logErr)
		}
		s.completeFetchRun(fetchRun, 0, 0, 0, err)
		return err
	}

	fetchRun, logErr := s.store.StartFetchRun(source, s.location.Code)
	if logErr != nil {
		log.Printf("ingest: start fetch log: %v", logErr)
	}

	result, err := aqi.Normalize(raw, s.opts)
	if err != nil {
		s.completeFetchRun(fetchRun, len(raw.Rows), 0, 0, err)
		return fmt.Errorf("normalize: %w", err)
	}

	metrics.RowsDropped.WithLabelValues(s.location.Code, "timestamp").Add(float64(result.DroppedTimestamps))
	metrics.RowsDropped.WithLabelValues(s.location.Code, "aqi").Add(float64(result.DroppedAQI))

	dropped := result.DroppedTimestamps + result.DroppedAQI
	if result.NoData {
		log.Printf("ingest: no usable rows from %s (dropped %d)", source, dropped)
		s.completeFetchRun(fetchRun, len(raw.Rows), 0, dropped, nil)
		return nil
	}

	series := result.Series
	run := models.PredictionRun{
		LocationCode:      s.location.Code,
		RunTime:           runKey(series),
		ModelVersion:      series.Rows[0].ModelVersion,
		FetchedAt:         time.Now().UTC(),
		Source:            source,
		RowCount:          len(series.Rows),
		DroppedTimestamps: result.DroppedTimestamps,
		DroppedAQI:        result.DroppedAQI,
	}

	records := make([]models.ForecastRecord, 0, len(series.Rows))
	for _, r := range series.Rows {
		records = append(records, models.ForecastRecord{
			ForecastTimeUTC: r.ForecastTimeUTC,
			AQI:             r.AQI,
			Category:        string(r.Category),
		})
	}

	runID, err := s.store.InsertRun(run, records)
	if err != nil {
		s.completeFetchRun(fetchRun, len(raw.Rows), 0, dropped, err)
		return fmt.Errorf("store run: %w", err)
	}

	metrics.RowsIngested.WithLabelValues(s.location.Code).Add(float64(len(records)))
	s.completeFetchRun(fetchRun, len(raw.Rows), len(records), dropped, nil)
	log.Printf("ingest: stored run %s (%d rows, %d dropped) from %s",
		run.RunTime.Format(time.RFC3339), len(records), dropped, source)

	if s.advisory != nil {
		if err := s.advisory.GenerateForRun(ctx, runID); err != nil {
			log.Printf("ingest: advisory: %v", err)
		}
	}
	return nil
}

// runKey is the stored identity of a series. A table without a prediction
// run column normalizes to a zero run time; fall back to the first forecast
// instant so successive polls of the same table stay idempotent.
func runKey(series aqi.ForecastSeries) time.Time {
	if !series.PredictionRun.IsZero() {
		return series.PredictionRun
	}
	return series.Rows[0].ForecastTimeUTC
}

func (s *Scheduler) fetchRaw() (aqi.RawTable, string, error) {
	start := time.Now()
	raw, body, err := s.features.Read()
	metrics.FetchLatency.WithLabelValues("featurestore").Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.FetchCallsTotal.WithLabelValues("featurestore", "ok").Inc()
		s.cache.Put(raw)
		if _, err := s.store.StoreRawPayload("featurestore", s.features.Endpoint(), s.location.Code, body); err != nil {
			log.Printf("ingest: archive payload: %v", err)
		}
		return raw, "featurestore", nil
	}
	metrics.FetchCallsTotal.WithLabelValues("featurestore", "error").Inc()
	log.Printf("ingest: feature store unavailable: %v", err)

	if cached, ok := s.cache.Get(); ok {
		return cached, "cache", nil
	}

	if s.archive != nil {
		raw, body, archiveErr := s.archive.FetchLatest()
		if archiveErr == nil {
			metrics.FetchCallsTotal.WithLabelValues("csv_archive", "ok").Inc()
			if _, err := s.store.StoreRawPayload("csv_archive", "backup", s.location.Code, body); err != nil {
				log.Printf("ingest: archive payload: %v", err)
			}
			return raw, "csv_archive", nil
		}
		metrics.FetchCallsTotal.WithLabelValues("csv_archive", "error").Inc()
		log.Printf("ingest: csv archive unavailable: %v", archiveErr)
	}

	return aqi.RawTable{}, "", fmt.Errorf("all sources failed: %w", err)
}

func (s *Scheduler) completeFetchRun(run *store.FetchRun, fetched, stored, dropped int, err error) {
	if run == nil {
		return
	}
	run.RowsFetched = sql.NullInt64{Int64: int64(fetched), Valid: true}
	run.RowsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
	run.RowsDropped = sql.NullInt64{Int64: int64(dropped), Valid: true}
	run.Success = err == nil
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if logErr := s.store.CompleteFetchRun(run); logErr != nil {
		log.Printf("ingest: complete fetch log: %v", logErr)
	}
}
