// Package catapi fetches random cat pictures from The Cat API.
package catapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/m3rciful/memebot/core/buildinfo"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/netutil"
	"github.com/m3rciful/memebot/memebot/metrics"
)

const (
	// DefaultURL is the image search endpoint of The Cat API.
	DefaultURL = "https://api.thecatapi.com/v1/images/search"

	defaultFetchTimeout = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultRetryWait    = 200 * time.Millisecond
	providerName        = "catapi"
)

// ErrNoImages is returned when the API answered without any usable image.
var ErrNoImages = errors.New("catapi: no images returned")

// Recorder receives every image reference the client hands out.
type Recorder interface {
	Record(ref string)
}

// Image is one entry of the search response.
type Image struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	URL          string
	APIKey       string
	FetchTimeout time.Duration
	ProbeTimeout time.Duration
}

// Client fetches cat images and records them into a Recorder.
type Client struct {
	http     *resty.Client
	cfg      Config
	recorder Recorder
	metrics  *metrics.Metrics
}

// New builds a Client. recorder and m may be nil.
func New(cfg Config, recorder Recorder, m *metrics.Metrics) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", buildinfo.UserAgent("memebot")).
		SetRetryCount(1).
		SetRetryWaitTime(defaultRetryWait).
		AddRetryCondition(retryable)
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}
	return &Client{http: client, cfg: cfg, recorder: recorder, metrics: m}
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return netutil.ShouldRetry(err)
	}
	return resp != nil && netutil.RetryableStatus(resp.StatusCode())
}

// RandomImage returns the URL of one random cat picture.
func (c *Client) RandomImage(ctx context.Context) (string, error) {
	urls, err := c.Images(ctx, 1)
	if err != nil {
		return "", err
	}
	return urls[0], nil
}

// Images returns up to count picture URLs. The API may return more than
// asked for without a key, so the result is trimmed.
func (c *Client) Images(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		count = 1
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	urls, err := c.search(ctx, count)
	took := time.Since(start)
	c.metrics.ObserveProvider(providerName, "search", took, err)
	if err != nil {
		logger.Warn(ctx, "images", "fetch",
			slog.String("status", "fail"),
			slog.String("provider", providerName),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	if c.recorder != nil {
		for _, u := range urls {
			c.recorder.Record(u)
		}
	}
	logger.Debug(ctx, "images", "fetch",
		slog.String("status", "ok"),
		slog.String("provider", providerName),
		slog.Int("count", len(urls)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return urls, nil
}

func (c *Client) search(ctx context.Context, count int) ([]string, error) {
	var images []Image
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(count)).
		SetResult(&images).
		Get(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("catapi search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catapi search: status %d", resp.StatusCode())
	}

	urls := make([]string, 0, count)
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		urls = append(urls, img.URL)
		if len(urls) == count {
			break
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	return urls, nil
}

// Probe checks the API answers with a successful status.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	resp, err := c.http.R().SetContext(ctx).Get(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("catapi probe: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("catapi probe: status %d", resp.StatusCode())
	}
	return nil
}
