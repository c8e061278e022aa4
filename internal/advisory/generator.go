// Package advisory turns a stored forecast run into a short plain-language
// health advisory using OpenAI's API. Generation is optional: without an API
// key the rest of the service runs unaffected.
package advisory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mhaseeb/pindiaqi/internal/metrics"
	"github.com/mhaseeb/pindiaqi/internal/models"
	"github.com/mhaseeb/pindiaqi/internal/store"
)

const advisoryModel = "gpt-4o-mini"

type Generator struct {
	client openai.Client
	store  *store.Store
	model  string
}

// NewGenerator creates an advisory generator.
// It reads the OPENAI_API_KEY environment variable for authentication.
func NewGenerator(st *store.Store) (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Generator{
		client: client,
		store:  st,
		model:  advisoryModel,
	}, nil
}

// GenerateForRun produces and stores an advisory for the given run. A run
// that already has an advisory for the same peak category is skipped, so the
// API is called at most once per run and severity level.
func (g *Generator) GenerateForRun(ctx context.Context, runID int64) error {
	run, err := g.store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found", runID)
	}

	records, err := g.store.GetRunForecasts(runID)
	if err != nil {
		return fmt.Errorf("load forecasts: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("run %d has no forecast rows", runID)
	}

	peak := peakRecord(records)

	existing, err := g.store.GetAdvisory(runID)
	if err != nil {
		return fmt.Errorf("check existing advisory: %w", err)
	}
	if existing != nil && existing.PeakCategory == peak.Category {
		return nil
	}

	prompt := BuildPrompt(run.LocationCode, records, peak)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		metrics.AdvisoriesGenerated.WithLabelValues("error").Inc()
		return fmt.Errorf("advisory generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.AdvisoriesGenerated.WithLabelValues("error").Inc()
		return errors.New("no completion returned")
	}

	body := strings.TrimSpace(resp.Choices[0].Message.Content)
	if body == "" {
		metrics.AdvisoriesGenerated.WithLabelValues("error").Inc()
		return errors.New("empty completion returned")
	}

	if err := g.store.UpsertAdvisory(models.Advisory{
		RunID:        runID,
		PeakCategory: peak.Category,
		Body:         body,
		Model:        sql.NullString{String: g.model, Valid: true},
	}); err != nil {
		return fmt.Errorf("store advisory: %w", err)
	}

	metrics.AdvisoriesGenerated.WithLabelValues("ok").Inc()
	log.Printf("advisory: generated for run %d (peak %s)", runID, peak.Category)
	return nil
}

func peakRecord(records []models.ForecastRecord) models.ForecastRecord {
	peak := records[0]
	for _, r := range records[1:] {
		if r.AQI > peak.AQI {
			peak = r
		}
	}
	return peak
}

// BuildPrompt creates the completion prompt for a forecast run. The model is
// asked for two or three sentences of practical guidance, not a restatement
// of the numbers.
func BuildPrompt(locationCode string, records []models.ForecastRecord, peak models.ForecastRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are writing a short air-quality advisory for residents of %s.\n", locationCode)
	fmt.Fprintf(&b, "The forecast covers %d hours. Peak AQI is %d (%s) at %s UTC.\n",
		len(records), peak.AQI, peak.Category, peak.ForecastTimeUTC.Format("15:04"))

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
	}
	b.WriteString("Hours per category:")
	for _, r := range records {
		if counts[r.Category] == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s=%d", r.Category, counts[r.Category])
		counts[r.Category] = 0
	}
	b.WriteString(".\n")
	b.WriteString("Write 2-3 sentences of practical health guidance for the general public. " +
		"Mention sensitive groups only if the peak category warrants it. " +
		"Do not repeat the raw numbers back.")
	return b.String()
}
