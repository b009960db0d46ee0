package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/state"
	"github.com/m3rciful/memebot/memebot/composer"
	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/metrics"
)

// Composer renders a meme.
type Composer interface {
	Compose(ctx context.Context, imageRef, top, bottom string) (string, error)
}

// FavoritesAdder persists a favorite.
type FavoritesAdder interface {
	Add(ctx context.Context, userID int64, meme favorites.Meme) error
}

// ImageSource fetches a fresh random image.
type ImageSource interface {
	RandomImage(ctx context.Context) (string, error)
}

// RecentImages exposes the last image seen by the bot.
type RecentImages interface {
	MostRecent() (string, bool)
}

// Deps are the collaborators of an Engine. Source, Recent and Metrics may be nil.
type Deps struct {
	Composer  Composer
	Favorites FavoritesAdder
	Source    ImageSource
	Recent    RecentImages
	Metrics   *metrics.Metrics
}

// Engine runs the meme dialog for every user.
type Engine struct {
	sessions *state.Store[Draft]
	deps     Deps
}

// New returns an Engine over sessions. A nil store gets a fresh one.
func New(sessions *state.Store[Draft], deps Deps) *Engine {
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Engine{sessions: sessions, deps: deps}
}

// Sessions exposes the underlying store for routing.
func (e *Engine) Sessions() *state.Store[Draft] { return e.sessions }

// Session returns a snapshot of the user's session.
func (e *Engine) Session(userID int64) Session {
	return e.sessions.Get(userID)
}

func (e *Engine) result(sess Session, outcome Outcome, prompt Prompt, err error) Result {
	return Result{State: sess.State, Outcome: outcome, Prompt: prompt, Draft: sess.Data, Err: err}
}

func (e *Engine) observe(ctx context.Context, op string, from, to state.State) {
	e.deps.Metrics.ObserveTransition(string(from), string(to))
	e.deps.Metrics.SetActiveSessions(e.sessions.InProgressCount())
	if from == to {
		return
	}
	logger.Debug(ctx, "meme.engine", "transition",
		slog.String("op", op),
		slog.String("from_state", string(from)),
		slog.String("to_state", string(to)),
	)
}

// reset drops the user's session entirely.
func (e *Engine) reset(ctx context.Context, op string, userID int64, from state.State) Session {
	e.sessions.Clear(userID)
	e.observe(ctx, op, from, StateIdle)
	return e.sessions.Get(userID)
}

func (e *Engine) restart(ctx context.Context, op string, userID int64, from state.State) Result {
	sess := e.reset(ctx, op, userID, from)
	logger.Warn(ctx, "meme.engine", op,
		slog.String("status", "fail"),
		slog.String("state", string(from)),
		slog.String("err", ErrRestartRequired.Error()),
	)
	return e.result(sess, OutcomeError, PromptNone, ErrRestartRequired)
}

// HandleStart begins a new meme from any state, discarding the previous draft.
func (e *Engine) HandleStart(ctx context.Context, userID int64) Result {
	var from state.State
	sess := e.sessions.Update(userID, func(s *Session) {
		from = s.State
		s.State = StateChoosingImage
		s.Data = Draft{}
	})
	e.observe(ctx, "start", from, sess.State)
	return e.result(sess, OutcomePrompt, PromptChooseImage, nil)
}

// HandleImageChosen selects ref as the meme background and asks for the top caption.
// Captions and any earlier render are discarded.
func (e *Engine) HandleImageChosen(ctx context.Context, userID int64, ref string, uploaded bool) Result {
	if ref == "" {
		sess := e.sessions.Get(userID)
		return e.result(sess, OutcomeError, PromptChooseImage, ErrNoImage)
	}
	var from state.State
	sess := e.sessions.Update(userID, func(s *Session) {
		from = s.State
		s.State = StateEnteringTopText
		s.Data = Draft{SelectedImage: ref, ImageIsUploaded: uploaded}
	})
	e.observe(ctx, "image_chosen", from, sess.State)
	logger.Info(ctx, "meme.engine", "image_chosen",
		slog.String("status", "ok"),
		slog.String("image", ref),
		slog.Bool("uploaded", uploaded),
	)
	return e.result(sess, OutcomePrompt, PromptTopText, nil)
}

// HandleText consumes free text according to the current state.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) Result {
	sess := e.sessions.Get(userID)
	switch sess.State {
	case StateEnteringTopText:
		if sess.Data.SelectedImage == "" || !sess.Data.consistent() {
			return e.restart(ctx, "top_text", userID, sess.State)
		}
		caption, err := composer.NormalizeCaption(text)
		if err != nil {
			return e.result(sess, OutcomeError, PromptTopText, err)
		}
		next := e.sessions.Update(userID, func(s *Session) {
			s.State = StateEnteringBottomText
			s.Data.TopText = caption
			s.Data.BottomText = ""
			s.Data.LastRenderedMeme = ""
		})
		e.observe(ctx, "top_text", sess.State, next.State)
		return e.result(next, OutcomePrompt, PromptBottomText, nil)

	case StateEnteringBottomText:
		if sess.Data.SelectedImage == "" || sess.Data.TopText == "" {
			return e.restart(ctx, "bottom_text", userID, sess.State)
		}
		caption, err := composer.NormalizeCaption(text)
		if err != nil {
			return e.result(sess, OutcomeError, PromptBottomText, err)
		}
		next := e.sessions.Update(userID, func(s *Session) {
			s.State = StateReviewPending
			s.Data.BottomText = caption
			s.Data.LastRenderedMeme = ""
		})
		e.observe(ctx, "bottom_text", sess.State, next.State)
		return e.result(next, OutcomePrompt, PromptReview, nil)

	case StateChoosingImage:
		return e.result(sess, OutcomePrompt, PromptChooseImage, nil)

	case StateReviewPending:
		return e.result(sess, OutcomePrompt, PromptReview, nil)

	default:
		return e.result(sess, OutcomeIgnored, PromptNone, nil)
	}
}

// HandleConfirm renders the reviewed draft. Confirming again in meme_ready
// renders the same draft again.
func (e *Engine) HandleConfirm(ctx context.Context, userID int64) Result {
	sess := e.sessions.Get(userID)
	if sess.State != StateReviewPending && sess.State != StateMemeReady {
		return e.result(sess, OutcomeIgnored, PromptNone, nil)
	}
	if !sess.Data.complete() {
		return e.restart(ctx, "confirm", userID, sess.State)
	}
	draft := sess.Data

	ref, err := e.deps.Composer.Compose(ctx, draft.SelectedImage, draft.TopText, draft.BottomText)

	stale := false
	next := e.sessions.Update(userID, func(s *Session) {
		// The user may have cancelled or restarted while the render was in flight.
		if s.State != sess.State || s.Data.SelectedImage != draft.SelectedImage ||
			s.Data.TopText != draft.TopText || s.Data.BottomText != draft.BottomText {
			stale = true
			return
		}
		if err != nil {
			s.State = StateChoosingImage
			return
		}
		s.State = StateMemeReady
		s.Data.LastRenderedMeme = ref
	})
	if stale {
		logger.Info(ctx, "meme.engine", "confirm",
			slog.String("status", "skip"),
			slog.String("state", string(next.State)),
		)
		return e.result(next, OutcomeIgnored, PromptNone, nil)
	}
	e.observe(ctx, "confirm", sess.State, next.State)

	if err != nil {
		logger.Warn(ctx, "meme.engine", "confirm",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return e.result(next, OutcomeError, PromptChooseImage, fmt.Errorf("%w: %w", ErrRenderFailed, err))
	}
	logger.Info(ctx, "meme.engine", "confirm",
		slog.String("status", "ok"),
		slog.String("outcome", string(OutcomeRendered)),
		slog.String("meme", ref),
	)
	res := e.result(next, OutcomeRendered, PromptNone, nil)
	res.MemeRef = ref
	return res
}

// HandleCancel drops the user's dialog and draft from any state.
func (e *Engine) HandleCancel(ctx context.Context, userID int64) Result {
	prev := e.sessions.Get(userID)
	sess := e.reset(ctx, "cancel", userID, prev.State)
	prompt := PromptNothingToCancel
	if !prev.Idle() {
		prompt = PromptCancelled
	}
	return e.result(sess, OutcomePrompt, prompt, nil)
}

// HandleSaveFavorite stores the rendered meme, or the selected image when
// nothing was rendered yet. On success the session is reset.
func (e *Engine) HandleSaveFavorite(ctx context.Context, userID int64) Result {
	sess := e.sessions.Get(userID)
	d := sess.Data
	url := d.LastRenderedMeme
	if url == "" {
		url = d.SelectedImage
	}
	if url == "" {
		return e.result(sess, OutcomeError, PromptNone, ErrNoImage)
	}
	if !d.consistent() {
		return e.restart(ctx, "save", userID, sess.State)
	}

	meme := favorites.Meme{
		URL:        url,
		Top:        d.TopText,
		Bottom:     d.BottomText,
		IsUploaded: d.ImageIsUploaded && d.LastRenderedMeme == "",
	}
	if err := e.save(ctx, userID, meme); err != nil {
		return e.result(sess, OutcomeError, PromptNone, err)
	}

	next := e.reset(ctx, "save", userID, sess.State)
	res := e.result(next, OutcomeSaved, PromptNone, nil)
	res.MemeRef = url
	return res
}

func (e *Engine) save(ctx context.Context, userID int64, meme favorites.Meme) error {
	err := e.deps.Favorites.Add(ctx, userID, meme)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, favorites.ErrDuplicate):
		return ErrAlreadySaved
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
