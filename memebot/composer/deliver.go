package composer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
)

// DeliveryMode tells how a meme finally reached the user.
type DeliveryMode string

const (
	DeliveredByRef   DeliveryMode = "ref"
	DeliveredByBytes DeliveryMode = "bytes"
	DeliveredByLink  DeliveryMode = "link"
)

// Sender pushes a meme to the user through the chat transport.
type Sender interface {
	SendRef(ctx context.Context, memeRef string) error
	SendBytes(ctx context.Context, data []byte) error
	SendLink(ctx context.Context, memeRef string) error
}

// Deliver sends memeRef by reference, then as downloaded bytes, then as a plain link.
// The returned error joins every failed attempt when nothing could be sent.
func (c *Composer) Deliver(ctx context.Context, memeRef string, s Sender) (DeliveryMode, error) {
	refErr := s.SendRef(ctx, memeRef)
	if refErr == nil {
		return DeliveredByRef, nil
	}
	logger.Warn(ctx, "meme.composer", "deliver.ref",
		slog.String("status", "retry"),
		slog.String("err", refErr.Error()),
	)

	data, dlErr := c.renderer.Download(ctx, memeRef)
	if dlErr == nil {
		if dlErr = s.SendBytes(ctx, data); dlErr == nil {
			return DeliveredByBytes, nil
		}
	}
	logger.Warn(ctx, "meme.composer", "deliver.bytes",
		slog.String("status", "retry"),
		slog.String("err", dlErr.Error()),
	)

	linkErr := s.SendLink(ctx, memeRef)
	if linkErr == nil {
		return DeliveredByLink, nil
	}
	return "", errors.Join(refErr, dlErr, linkErr)
}
