// Package scraper is the HTTP client of the headless-browser scrape service.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	domscrape "github.com/kailas-cloud/cityrag/internal/domain/scrape"
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	// Timeout bounds the whole scrape call.
	Timeout time.Duration
	// PageTimeout is forwarded to the browser as the page load timeout.
	PageTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client calls POST {base}/scrape-events.
type Client struct {
	baseURL     string
	timeout     time.Duration
	pageTimeout time.Duration
	http        *http.Client
	logger      *zap.Logger
}

// New creates a scrape service client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	page := cfg.PageTimeout
	if page <= 0 {
		page = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     timeout,
		pageTimeout: page,
		http:        hc,
		logger:      logger,
	}
}

type scrapeOptions struct {
	WaitForLoad   bool  `json:"waitForLoad"`
	ExtractImages bool  `json:"extractImages"`
	ExtractLinks  bool  `json:"extractLinks"`
	Timeout       int64 `json:"timeout"`
}

type scrapeRequest struct {
	URL      string        `json:"url"`
	CitySlug string        `json:"citySlug"`
	Options  scrapeOptions `json:"options"`
}

type eventJSON struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Location    string   `json:"location"`
	Link        string   `json:"link"`
	Image       string   `json:"image"`
	Source      string   `json:"source"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Confidence  float64  `json:"confidence"`
	ExtractedAt string   `json:"extractedAt"`
}

type scrapeResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	CitySlug  string      `json:"citySlug"`
	URL       string      `json:"url"`
	Events    []eventJSON `json:"events"`
	Timestamp string      `json:"timestamp"`
}

// Scrape asks the service to extract the events of pageURL.
// Transport failures and non-2xx answers wrap domain.ErrScrapeFailed; a deadline hit wraps domain.ErrTimeout.
func (c *Client) Scrape(ctx context.Context, pageURL, citySlug string) (domscrape.Result, error) {
	if c.baseURL == "" {
		return domscrape.Result{}, fmt.Errorf("scrape service url not configured: %w", domain.ErrScrapeFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(scrapeRequest{
		URL:      pageURL,
		CitySlug: citySlug,
		Options: scrapeOptions{
			WaitForLoad:   true,
			ExtractImages: true,
			ExtractLinks:  true,
			Timeout:       c.pageTimeout.Milliseconds(),
		},
	})
	if err != nil {
		return domscrape.Result{}, fmt.Errorf("marshal scrape request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape-events", bytes.NewReader(body))
	if err != nil {
		return domscrape.Result{}, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domscrape.Result{}, fmt.Errorf("%w: scrape after %s: %w", domain.ErrTimeout, c.timeout, domain.ErrScrapeFailed)
		}
		return domscrape.Result{}, fmt.Errorf("scrape request: %v: %w", err, domain.ErrScrapeFailed)
	}
	defer resp.Body.Close()

	var out scrapeResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domscrape.Result{}, fmt.Errorf("scrape service HTTP %d: %s: %w", resp.StatusCode, msg, domain.ErrScrapeFailed)
	}
	if decodeErr != nil {
		return domscrape.Result{}, fmt.Errorf("decode scrape response: %v: %w", decodeErr, domain.ErrScrapeFailed)
	}
	if out.Error != "" && !out.Success {
		return domscrape.Result{}, fmt.Errorf("scrape service: %s: %w", out.Error, domain.ErrScrapeFailed)
	}

	c.logger.Debug("scrape response", zap.String("url", pageURL), zap.Int("events", len(out.Events)))
	return toResult(&out, pageURL, citySlug), nil
}

// HealthCheck calls GET {base}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("scrape service url not configured: %w", domain.ErrScrapeFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scrape health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrape health: HTTP %d: %w", resp.StatusCode, domain.ErrScrapeFailed)
	}
	return nil
}

func toResult(r *scrapeResponse, pageURL, citySlug string) domscrape.Result {
	res := domscrape.Result{
		CitySlug:  r.CitySlug,
		URL:       r.URL,
		Events:    make([]domscrape.Event, 0, len(r.Events)),
		Timestamp: parseTime(r.Timestamp),
	}
	if res.CitySlug == "" {
		res.CitySlug = citySlug
	}
	if res.URL == "" {
		res.URL = pageURL
	}
	for _, e := range r.Events {
		source := e.Source
		if source == "" {
			source = pageURL
		}
		res.Events = append(res.Events, domscrape.Event{
			Title:       e.Title,
			Description: e.Description,
			Date:        e.Date,
			Time:        e.Time,
			Location:    e.Location,
			Link:        e.Link,
			Image:       e.Image,
			SourceURL:   source,
			Category:    e.Category,
			Tags:        e.Tags,
			Confidence:  e.Confidence,
			ExtractedAt: parseTime(e.ExtractedAt),
		})
	}
	return res
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
