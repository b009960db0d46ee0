// Package engine drives the per-user meme creation dialog.
//
// The dialog walks idle → choosing_image → entering_top_text →
// entering_bottom_text → review_pending → meme_ready. Every operation reads
// the user's session, checks the draft invariants, and writes the session
// back; network calls happen outside the session lock.
package engine

import (
	"errors"

	"github.com/m3rciful/memebot/core/telegram/state"
	"github.com/m3rciful/memebot/memebot/composer"
)

// Dialog states.
const (
	StateIdle               = state.StateIdle
	StateChoosingImage      state.State = "choosing_image"
	StateEnteringTopText    state.State = "entering_top_text"
	StateEnteringBottomText state.State = "entering_bottom_text"
	StateReviewPending      state.State = "review_pending"
	// StateMemeReady follows a successful render. Free text is not captured
	// here, but the draft is kept so the meme can still be saved.
	StateMemeReady state.State = "meme_ready"
)

// Draft is the meme being assembled. Empty strings mean "unset".
type Draft struct {
	SelectedImage    string
	TopText          string
	BottomText       string
	LastRenderedMeme string
	ImageIsUploaded  bool
	// PendingUpload is a photo sent outside the dialog, waiting for the user to pick an action.
	PendingUpload string
}

// consistent reports whether the caption invariant holds.
func (d Draft) consistent() bool {
	return d.BottomText == "" || d.TopText != ""
}

// complete reports whether the draft can be rendered.
func (d Draft) complete() bool {
	return d.SelectedImage != "" && d.TopText != "" && d.BottomText != ""
}

// Session is the per-user record kept by the engine.
type Session = state.Session[Draft]

// NewSessions returns a session store where meme_ready does not capture free text.
func NewSessions() *state.Store[Draft] {
	return state.NewStore[Draft](StateMemeReady)
}

var (
	// ErrNoImage means no image reference was available.
	ErrNoImage = errors.New("engine: no image selected")
	// ErrInvalidCaption means the caption was blank or used unsupported characters.
	ErrInvalidCaption = composer.ErrInvalidCaption
	// ErrRestartRequired means the session lost data it needed and was reset.
	ErrRestartRequired = errors.New("engine: session inconsistent, restart required")
	// ErrRenderFailed means the renderer could not produce the meme.
	ErrRenderFailed = errors.New("engine: render failed")
	// ErrAlreadySaved means the favorite already exists.
	ErrAlreadySaved = errors.New("engine: already in favorites")
	// ErrStorage wraps a favorites persistence failure.
	ErrStorage = errors.New("engine: storage failure")
)

// Outcome classifies a Result.
type Outcome string

const (
	OutcomePrompt   Outcome = "prompt"
	OutcomeRendered Outcome = "rendered"
	OutcomeSaved    Outcome = "saved"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeError    Outcome = "error"
)

// Prompt names what the user should be asked next.
type Prompt string

const (
	PromptNone            Prompt = ""
	PromptChooseImage     Prompt = "choose_image"
	PromptTopText         Prompt = "top_text"
	PromptBottomText      Prompt = "bottom_text"
	PromptReview          Prompt = "review"
	PromptCancelled       Prompt = "cancelled"
	PromptNothingToCancel Prompt = "nothing_to_cancel"
	PromptUploadAction    Prompt = "upload_action"
)

// Result is returned by every engine operation.
type Result struct {
	State   state.State
	Outcome Outcome
	Prompt  Prompt
	MemeRef string
	Draft   Draft
	Err     error
}
