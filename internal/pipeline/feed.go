package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FeedAdapter extracts declaration batches from a scraper service's JSON feed
// endpoint. Both production pipelines use this adapter pointed at separately
// implemented scrapers, which keeps the extraction implementations
// independent while the core sees one contract.
type FeedAdapter struct {
	source string
	url    string
	client *http.Client
}

type feedResponse struct {
	Records []RawRecord `json:"records"`
}

func NewFeedAdapter(source, url string, timeout time.Duration) *FeedAdapter {
	return &FeedAdapter{
		source: source,
		url:    url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *FeedAdapter) Source() string {
	return a.source
}

func (a *FeedAdapter) Run(ctx context.Context) ([]RawRecord, time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("error creating request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, time.Since(start), fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, time.Since(start), fmt.Errorf("error decoding resp.Body: %w", err)
	}

	return data.Records, time.Since(start), nil
}
