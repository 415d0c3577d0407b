package apod

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"apod_pipeline/internal/domain"
)

const (
	SourceID   = "apod"
	SourceName = "NASA Astronomy Picture of the Day"
)

// Config holds APOD source configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Source fetches one day's record from the APOD API. It performs a single
// synchronous GET per call; retry policy lives with the caller.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// New creates a new APOD source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// Fetch performs one GET against the APOD endpoint. An empty date requests
// today's entry. Network and context errors come back as transient
// FetchErrors; a non-200 status or an undecodable body is permanent.
func (s *Source) Fetch(ctx context.Context, date string) (*APIResponse, error) {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	if date != "" {
		q.Set("date", date)
	}
	reqURL := s.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ApodPipeline/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{StatusCode: resp.StatusCode}
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &domain.FetchError{Err: fmt.Errorf("decode response: %w", err)}
	}

	s.logger.Debug("fetched record", "date", apiResp.Date, "media_type", apiResp.MediaType)

	return &apiResp, nil
}
