package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/httputil"
)

// FeatureStoreClient reads the AQI prediction feature group over the hosted
// feature store's REST surface.
type FeatureStoreClient struct {
	baseURL      string
	apiKey       string
	featureGroup string
	version      int
	client       *http.Client
}

func NewFeatureStoreClient(baseURL, apiKey, featureGroup string, version int) *FeatureStoreClient {
	return &FeatureStoreClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		featureGroup: featureGroup,
		version:      version,
		client:       httputil.NewClient(),
	}
}

// Endpoint identifies the feature group for audit logs and payload archival.
func (c *FeatureStoreClient) Endpoint() string {
	return fmt.Sprintf("%s/%d", c.featureGroup, c.version)
}

type readResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Read fetches the full prediction table. Rate-limit and auth rejections are
// retried with exponential backoff; other failures are permanent. The raw
// response body is returned alongside the table for archival.
func (c *FeatureStoreClient) Read() (aqi.RawTable, []byte, error) {
	url := fmt.Sprintf("%s/featuregroups/%s/versions/%d/read", c.baseURL, c.featureGroup, c.version)

	var body []byte
	operation := func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read feature group: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("read feature group: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return aqi.RawTable{}, nil, err
	}

	var data readResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("unmarshal: %w", err)
	}

	if len(data.Columns) == 0 {
		return aqi.RawTable{}, nil, fmt.Errorf("no columns returned for %s", c.featureGroup)
	}

	return aqi.RawTable{Columns: data.Columns, Rows: data.Rows}, body, nil
}
