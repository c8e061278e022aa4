package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhaseeb/pindiaqi/internal/store"
)

type Server struct {
	store        *store.Store
	port         string
	locationCode string
	loc          *time.Location
}

func NewServer(store *store.Store, port, locationCode string, loc *time.Location) *Server {
	return &Server{
		store:        store,
		port:         port,
		locationCode: locationCode,
		loc:          loc,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/current", s.handleCurrent)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/advisory", s.handleAdvisory)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
