package handlers

import (
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.deps.Engine.HandleCancel(ctx, tghelpers.SenderID(c))

	name := ""
	if u := c.Sender(); u != nil {
		name = u.FirstName
	}
	return tghelpers.SendText(c, startText(name))
}

func (h *Handlers) onHelp(c tele.Context) error {
	return tghelpers.SendText(c, msgHelp)
}

func (h *Handlers) onRandomCat(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	caption := msgRandomCat
	ref, err := h.deps.Cats.RandomImage(ctx)
	if err != nil || ref == "" {
		ref = h.deps.Fallback[h.deps.Pick(len(h.deps.Fallback))]
		caption = msgFallbackCat
		if h.deps.Recorder != nil {
			h.deps.Recorder.Record(ref)
		}
		attrs := []slog.Attr{slog.String("status", "skip"), slog.String("image", ref)}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		logger.Warn(ctx, "images", "random.fallback", attrs...)
	}
	return h.sendCat(c, ref, caption)
}

func (h *Handlers) onMoreCat(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ref, err := h.deps.Cats.RandomImage(ctx)
	if err != nil || ref == "" {
		return tghelpers.Alert(c, msgMoreCatFailed, true)
	}
	if err := h.sendCat(c, ref, msgMoreCat); err != nil {
		return err
	}
	return ack(c, msgMoreCatToast)
}

// sendCat shows a cat picture, falling back to its link when Telegram rejects the URL.
func (h *Handlers) sendCat(c tele.Context, ref, caption string) error {
	markup := randomCatMarkup()
	if err := tghelpers.SendPhoto(c, tele.FromURL(ref), caption, markup); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "images", "send",
			slog.String("status", "retry"),
			slog.String("image", ref),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendTextMarkup(c, caption+"\n"+ref, markup)
	}
	return nil
}

func (h *Handlers) onNewMeme(c tele.Context) error {
	res := h.deps.Engine.HandleStart(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	return h.present(c, res)
}

func (h *Handlers) onCancel(c tele.Context) error {
	res := h.deps.Engine.HandleCancel(tghelpers.BuildContext(c), tghelpers.SenderID(c))
	return h.present(c, res)
}

func (h *Handlers) onTest(c tele.Context) error {
	if err := tghelpers.SendText(c, msgTesting); err != nil {
		return err
	}
	rep := h.deps.Health.Probe(tghelpers.BuildContext(c))
	return tghelpers.SendText(c, statusText(rep))
}

// onKeywordText answers free text outside a dialog.
func (h *Handlers) onKeywordText(c tele.Context) error {
	if !mentionsKeyword(c.Text()) {
		return nil
	}
	return tghelpers.SendText(c, msgKeywords)
}
