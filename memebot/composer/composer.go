// Package composer turns an image reference and two captions into a meme
// reference by delegating to an external renderer.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/memebot/core/logger"
)

// DefaultRenderTimeout bounds a single Compose call.
const DefaultRenderTimeout = 25 * time.Second

var (
	// ErrInvalidCaption is returned for blank captions or captions the renderer's font cannot draw.
	ErrInvalidCaption = errors.New("composer: invalid caption")
	// ErrUnavailable is returned when the renderer could not confirm a rendered image.
	ErrUnavailable = errors.New("composer: renderer unavailable")
)

// Renderer produces memes and serves their bytes.
type Renderer interface {
	Render(ctx context.Context, imageRef, top, bottom string) (string, error)
	Download(ctx context.Context, memeRef string) ([]byte, error)
}

// Composer validates captions and renders memes.
type Composer struct {
	renderer Renderer
	timeout  time.Duration
}

// Option customises a Composer.
type Option func(*Composer)

// WithTimeout overrides DefaultRenderTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a Composer backed by r.
func New(r Renderer, opts ...Option) *Composer {
	c := &Composer{renderer: r, timeout: DefaultRenderTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeCaption trims text and checks it only holds printable ASCII or line breaks.
func NormalizeCaption(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCaption)
	}
	for _, r := range text {
		if r == '\n' {
			continue
		}
		if r < 0x20 || r > 0x7e {
			return "", fmt.Errorf("%w: unsupported character %q", ErrInvalidCaption, r)
		}
	}
	return text, nil
}

// Compose renders imageRef with the two captions and returns the meme reference.
// Every renderer failure, including a panic, is reported as ErrUnavailable.
func (c *Composer) Compose(ctx context.Context, imageRef, top, bottom string) (ref string, err error) {
	if strings.TrimSpace(imageRef) == "" {
		return "", fmt.Errorf("%w: empty image reference", ErrUnavailable)
	}
	if top, err = NormalizeCaption(top); err != nil {
		return "", err
	}
	if bottom, err = NormalizeCaption(bottom); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "meme.composer", "compose",
				slog.String("status", "fail"),
				slog.Any("err", r),
			)
			ref, err = "", fmt.Errorf("%w: renderer panic: %v", ErrUnavailable, r)
		}
	}()

	start := time.Now()
	ref, err = c.renderer.Render(ctx, imageRef, top, bottom)
	if err == nil && ref == "" {
		err = errors.New("renderer returned empty reference")
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	logger.Info(ctx, "meme.composer", "compose",
		slog.String("status", "ok"),
		slog.String("meme", ref),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return ref, nil
}
