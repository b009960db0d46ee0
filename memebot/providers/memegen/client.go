// Package memegen talks to the memegen.link rendering service.
package memegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/m3rciful/memebot/core/buildinfo"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/memebot/metrics"
)

const (
	// DefaultBaseURL is the public memegen instance.
	DefaultBaseURL = "https://api.memegen.link"

	defaultRenderTimeout   = 20 * time.Second
	defaultDownloadTimeout = 30 * time.Second
	defaultProbeTimeout    = 5 * time.Second

	probeTemplate = "/images/drake/test/api.png"
	providerName  = "memegen"
)

var (
	// ErrNotImage is returned when the renderer answers with something other than an image.
	ErrNotImage = errors.New("memegen: response is not an image")
	// ErrEmptyBody is returned when a download produced no bytes.
	ErrEmptyBody = errors.New("memegen: empty response body")
)

// StatusError is a non-2xx answer from memegen.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d", e.Code) }

// rejectedRequest reports errors caused by the request itself, such as a
// background memegen cannot fetch. They say nothing about service health and
// do not count against the breaker.
func rejectedRequest(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 400 && status.Code < 500 && status.Code != 429
	}
	return errors.Is(err, ErrNotImage) || errors.Is(err, context.Canceled)
}

// Config configures a Client. Zero durations fall back to defaults.
type Config struct {
	BaseURL         string
	RenderTimeout   time.Duration
	DownloadTimeout time.Duration
	ProbeTimeout    time.Duration
	UserAgent       string
}

// Client renders memes and downloads rendered images.
type Client struct {
	http    *resty.Client
	base    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// New builds a Client. m may be nil.
func New(cfg Config, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = defaultRenderTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = buildinfo.UserAgent("memebot")
	}

	c := &Client{
		http:    resty.New().SetHeader("User-Agent", cfg.UserAgent),
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		metrics: m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || rejectedRequest(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(logger.Background(), "meme.composer", "breaker",
				slog.String("breaker", name),
				slog.String("from_state", from.String()),
				slog.String("to_state", to.String()),
			)
			c.metrics.SetBreakerState(name, int(to))
		},
	})
	return c
}

// URL builds the render URL for imageRef with the two captions.
func (c *Client) URL(imageRef, top, bottom string) string {
	return fmt.Sprintf("%s/images/custom/%s/%s.png?background=%s",
		c.base, Escape(top), Escape(bottom), url.QueryEscape(imageRef))
}

// Render asks memegen for the meme and returns its URL once the service has
// confirmed it serves an image there.
func (c *Client) Render(ctx context.Context, imageRef, top, bottom string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RenderTimeout)
	defer cancel()

	memeURL := c.URL(imageRef, top, bottom)
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.fetchImage(ctx, memeURL)
	})
	took := time.Since(start)
	c.metrics.ObserveProvider(providerName, "render", took, err)
	if err != nil {
		logger.Warn(ctx, "meme.composer", "render",
			slog.String("status", "fail"),
			slog.String("provider", providerName),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("memegen render: %w", err)
	}
	logger.Debug(ctx, "meme.composer", "render",
		slog.String("status", "ok"),
		slog.String("provider", providerName),
		slog.String("meme", memeURL),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return memeURL, nil
}

func (c *Client) fetchImage(ctx context.Context, target string) error {
	resp, err := c.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &StatusError{Code: resp.StatusCode()}
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("%w: %q", ErrNotImage, ct)
	}
	return nil
}

// Download fetches the bytes behind memeRef and checks they are an image.
func (c *Client) Download(ctx context.Context, memeRef string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	start := time.Now()
	body, err := c.download(ctx, memeRef)
	c.metrics.ObserveProvider(providerName, "download", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("memegen download: %w", err)
	}
	return body, nil
}

func (c *Client) download(ctx context.Context, memeRef string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(memeRef)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Code: resp.StatusCode()}
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if mt := mimetype.Detect(body); !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return body, nil
}

// Probe renders a fixed template to check the service is reachable.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	return c.fetchImage(ctx, c.base+probeTemplate)
}
