// Package health checks that the image source and the renderer are reachable.
package health

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/memebot/core/logger"
)

// DefaultTimeout bounds each individual probe.
const DefaultTimeout = 5 * time.Second

// Prober is implemented by the provider clients.
type Prober interface {
	Probe(ctx context.Context) error
}

// Report holds the outcome of one health check.
type Report struct {
	SourceOK   bool
	RendererOK bool
}

// OK reports whether every dependency answered.
func (r Report) OK() bool { return r.SourceOK && r.RendererOK }

// Checker probes both providers concurrently.
type Checker struct {
	source   Prober
	renderer Prober
	timeout  time.Duration
}

// New returns a Checker. A non-positive timeout uses DefaultTimeout.
func New(source, renderer Prober, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{source: source, renderer: renderer, timeout: timeout}
}

// Probe runs both probes in parallel. Failures are reported as false, never as errors.
func (c *Checker) Probe(ctx context.Context) Report {
	var rep Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.SourceOK = c.probe(gctx, "source", c.source)
		return nil
	})
	g.Go(func() error {
		rep.RendererOK = c.probe(gctx, "renderer", c.renderer)
		return nil
	})
	_ = g.Wait()
	return rep
}

func (c *Checker) probe(ctx context.Context, name string, p Prober) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.Probe(ctx)
	attrs := []slog.Attr{
		slog.String("provider", name),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))
		logger.Warn(ctx, "health", "probe", attrs...)
		return false
	}
	attrs = append(attrs, slog.String("status", "ok"))
	logger.Debug(ctx, "health", "probe", attrs...)
	return true
}
