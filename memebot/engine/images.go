package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/memebot/favorites"
)

// noImage reports ErrNoImage without touching the session. A user already
// choosing an image is asked to pick again.
func (e *Engine) noImage(ctx context.Context, op string, userID int64, cause error) Result {
	sess := e.sessions.Get(userID)
	err := ErrNoImage
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrNoImage, cause)
		logger.Warn(ctx, "meme.engine", op,
			slog.String("status", "fail"),
			slog.String("state", string(sess.State)),
			slog.String("err", cause.Error()),
		)
	}
	prompt := PromptNone
	if sess.State == StateChoosingImage {
		prompt = PromptChooseImage
	}
	return e.result(sess, OutcomeError, prompt, err)
}

// UseRandomImage fetches a fresh random picture and selects it.
func (e *Engine) UseRandomImage(ctx context.Context, userID int64) Result {
	if e.deps.Source == nil {
		return e.noImage(ctx, "random_image", userID, nil)
	}
	ref, err := e.deps.Source.RandomImage(ctx)
	if err != nil || ref == "" {
		return e.noImage(ctx, "random_image", userID, err)
	}
	return e.HandleImageChosen(ctx, userID, ref, false)
}

// UseRecentImage selects the last picture the bot handed out to anyone.
func (e *Engine) UseRecentImage(ctx context.Context, userID int64) Result {
	if e.deps.Recent == nil {
		return e.noImage(ctx, "recent_image", userID, nil)
	}
	ref, ok := e.deps.Recent.MostRecent()
	if !ok {
		return e.noImage(ctx, "recent_image", userID, nil)
	}
	return e.HandleImageChosen(ctx, userID, ref, false)
}

// RememberUpload keeps a photo sent outside the dialog until the user picks
// what to do with it. The dialog state is not touched.
func (e *Engine) RememberUpload(ctx context.Context, userID int64, fileID string) Result {
	if fileID == "" {
		return e.result(e.sessions.Get(userID), OutcomeError, PromptNone, ErrNoImage)
	}
	sess := e.sessions.Update(userID, func(s *Session) {
		s.Data.PendingUpload = fileID
	})
	logger.Debug(ctx, "meme.engine", "upload.remember", slog.String("image", fileID))
	return e.result(sess, OutcomePrompt, PromptUploadAction, nil)
}

// UsePendingUpload starts a meme from the remembered upload.
func (e *Engine) UsePendingUpload(ctx context.Context, userID int64) Result {
	pending := e.sessions.Get(userID).Data.PendingUpload
	if pending == "" {
		return e.result(e.sessions.Get(userID), OutcomeError, PromptNone, ErrNoImage)
	}
	return e.HandleImageChosen(ctx, userID, pending, true)
}

// SavePendingUpload stores the remembered upload as a favorite without captions.
func (e *Engine) SavePendingUpload(ctx context.Context, userID int64) Result {
	sess := e.sessions.Get(userID)
	pending := sess.Data.PendingUpload
	if pending == "" {
		return e.result(sess, OutcomeError, PromptNone, ErrNoImage)
	}
	if err := e.save(ctx, userID, favorites.Meme{URL: pending, IsUploaded: true}); err != nil {
		return e.result(sess, OutcomeError, PromptNone, err)
	}
	next := e.sessions.Update(userID, func(s *Session) {
		if s.Data.PendingUpload == pending {
			s.Data.PendingUpload = ""
		}
	})
	res := e.result(next, OutcomeSaved, PromptNone, nil)
	res.MemeRef = pending
	return res
}
