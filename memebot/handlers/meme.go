package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"
	"github.com/m3rciful/memebot/memebot/engine"

	tele "gopkg.in/telebot.v4"
)

// present turns an engine result into the next message of the dialog.
func (h *Handlers) present(c tele.Context, res engine.Result) error {
	if res.Err != nil {
		return presentError(c, res.Err)
	}
	switch res.Prompt {
	case engine.PromptChooseImage:
		return tghelpers.SendTextMarkup(c, msgChooseImage, memeStartMarkup())
	case engine.PromptTopText:
		if res.Draft.ImageIsUploaded {
			return tghelpers.SendText(c, msgTopTextUpload)
		}
		return tghelpers.SendText(c, msgTopText)
	case engine.PromptBottomText:
		return tghelpers.SendText(c, fmt.Sprintf(msgBottomText, res.Draft.TopText))
	case engine.PromptReview:
		return tghelpers.SendTextMarkup(c, reviewText(res.Draft), confirmMarkup())
	case engine.PromptCancelled:
		return tghelpers.SendText(c, msgCancelled)
	case engine.PromptNothingToCancel:
		return tghelpers.SendText(c, msgNothingToCancel)
	case engine.PromptUploadAction:
		return tghelpers.SendTextMarkup(c, msgUploadAction, uploadMarkup())
	}
	return nil
}

func presentError(c tele.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrRenderFailed), errors.Is(err, engine.ErrNoImage):
		return tghelpers.SendTextMarkup(c, errorText(err), memeStartMarkup())
	default:
		return tghelpers.SendText(c, errorText(err))
	}
}

// onDialogText feeds free text to the engine while a dialog is in progress.
func (h *Handlers) onDialogText(c tele.Context) error {
	res := h.deps.Engine.HandleText(tghelpers.BuildContext(c), tghelpers.SenderID(c), c.Text())
	return h.present(c, res)
}

// onPhoto selects an uploaded photo while choosing an image, otherwise keeps
// it until the user decides what to do with it.
func (h *Handlers) onPhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	uid := tghelpers.SenderID(c)
	fileID := msg.Photo.FileID

	if h.deps.Engine.Session(uid).State == engine.StateChoosingImage {
		return h.present(c, h.deps.Engine.HandleImageChosen(ctx, uid, fileID, true))
	}
	return h.present(c, h.deps.Engine.RememberUpload(ctx, uid, fileID))
}

func (h *Handlers) onMemeCurrent(c tele.Context) error {
	res := h.deps.Engine.UseRecentImage(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if res.Err != nil {
		return tghelpers.Alert(c, msgNoCachedImage, true)
	}
	if err := ack(c, ""); err != nil {
		return err
	}
	return h.present(c, res)
}

func (h *Handlers) onMemeRandom(c tele.Context) error {
	res := h.deps.Engine.UseRandomImage(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if res.Err != nil {
		return tghelpers.Alert(c, msgNoImage, true)
	}
	if err := ack(c, ""); err != nil {
		return err
	}
	if err := tghelpers.SendPhoto(c, tele.FromURL(res.Draft.SelectedImage), msgTopTextRandom, nil); err != nil {
		return tghelpers.SendText(c, msgTopTextRandom)
	}
	return nil
}

func (h *Handlers) onMemeConfirm(c tele.Context) error {
	// Rendering can outlast the callback answer deadline.
	if err := ack(c, msgRendering); err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	res := h.deps.Engine.HandleConfirm(ctx, tghelpers.SenderID(c))
	switch res.Outcome {
	case engine.OutcomeRendered:
		return h.deliver(c, res)
	case engine.OutcomeIgnored:
		return nil
	default:
		return h.present(c, res)
	}
}

// deliver sends the rendered meme by URL, then as bytes, then as a link.
func (h *Handlers) deliver(c tele.Context, res engine.Result) error {
	ctx := tghelpers.BuildContext(c)
	s := chatSender{c: c, caption: memeCaption(res.Draft), markup: resultMarkup()}
	mode, err := h.deps.Deliverer.Deliver(ctx, res.MemeRef, s)
	if err != nil {
		logger.Error(ctx, "meme.composer", "deliver",
			slog.String("status", "fail"),
			slog.String("meme", res.MemeRef),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgDeliverFailed)
	}
	logger.Info(ctx, "meme.composer", "deliver",
		slog.String("status", "ok"),
		slog.String("mode", string(mode)),
		slog.String("meme", res.MemeRef),
	)
	return nil
}

func (h *Handlers) onMemeRestart(c tele.Context) error {
	res := h.deps.Engine.HandleStart(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if err := ack(c, ""); err != nil {
		return err
	}
	return h.present(c, res)
}

func (h *Handlers) onMemeNew(c tele.Context) error {
	h.deps.Engine.HandleStart(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if err := ack(c, ""); err != nil {
		return err
	}
	return tghelpers.SendTextMarkup(c, msgNewMeme, memeStartMarkup())
}

func (h *Handlers) onMemeCancel(c tele.Context) error {
	res := h.deps.Engine.HandleCancel(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if err := ack(c, msgCancelledToast); err != nil {
		return err
	}
	return h.present(c, res)
}

func (h *Handlers) onFavAdd(c tele.Context) error {
	res := h.deps.Engine.HandleSaveFavorite(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	return alertSave(c, res.Err, msgFavAdded, msgFavNothing)
}

func (h *Handlers) onUploadMeme(c tele.Context) error {
	res := h.deps.Engine.UsePendingUpload(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	if res.Err != nil {
		return tghelpers.Alert(c, msgNoUpload, true)
	}
	if err := ack(c, msgUploadToast); err != nil {
		return err
	}
	return h.present(c, res)
}

func (h *Handlers) onUploadFav(c tele.Context) error {
	res := h.deps.Engine.SavePendingUpload(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	return alertSave(c, res.Err, msgPhotoFavAdded, msgNoUpload)
}

// alertSave reports the outcome of a favorites save as a popup.
func alertSave(c tele.Context, err error, saved, missing string) error {
	text := saved
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNoImage):
		text = missing
	default:
		text = errorText(err)
	}
	return tghelpers.Alert(c, text, true)
}
