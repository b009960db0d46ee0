package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// chatKey is the dispatcher ordering key: the chat, else the sender.
func chatKey(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return SenderID(c)
}

// call describes one Bot API request routed through the dispatcher.
type call struct {
	action   string
	endpoint string
	run      func() error
}

var (
	textCall  = func(run func() error) call { return call{"send.text", "sendMessage", run} }
	photoCall = func(run func() error) call { return call{"send.photo", "sendPhoto", run} }
)

func queueUnavailable(err error) bool {
	return errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed)
}

// enqueue hands the call to the dispatcher without waiting for Telegram.
// A full or closed queue degrades to a direct call.
func enqueue(c tele.Context, req call) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return req.run()
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, chatKey(c), req.action, req.endpoint, req.run)
	if !queueUnavailable(err) {
		return err
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("action", req.action),
		slog.String("endpoint", req.endpoint),
		slog.String("err", err.Error()),
	)
	return req.run()
}

// await runs the call in chat order and returns its outcome.
func await(c tele.Context, req call) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return req.run()
	}
	err := disp.Do(BuildContext(c), chatKey(c), req.action, req.endpoint, req.run)
	if queueUnavailable(err) {
		return req.run()
	}
	return err
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return enqueue(c, textCall(func() error { return c.Send(text, args...) }))
}

// SendTextMarkup sends raw text with reply markup attached.
func SendTextMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

// SendTextWait sends text with markup and waits for Telegram to accept it.
func SendTextWait(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return await(c, textCall(func() error { return c.Send(text, opts) }))
}

// EditOrSendText edits the callback's message in place, falling back to a
// new message when editing fails. Photo messages always get a new one.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	if msg := c.Message(); msg != nil && msg.Photo == nil && c.Callback() != nil {
		if err := c.Edit(text, opts); err == nil {
			return nil
		}
	}
	return SendText(c, text, opts)
}

// SendPhoto sends a photo and waits for the result so callers can fall back on failure.
// The file may reference a URL, a Telegram file ID, or in-memory bytes.
func SendPhoto(c tele.Context, file tele.File, caption string, markup *tele.ReplyMarkup) error {
	photo := &tele.Photo{File: file, Caption: caption}
	var args []any
	if markup != nil {
		args = append(args, markup)
	}
	return await(c, photoCall(func() error { return c.Send(photo, args...) }))
}

// Alert answers the callback with a popup, or a toast when alert is false.
// Outside a callback the text is sent as a message.
func Alert(c tele.Context, text string, alert bool) error {
	if c.Callback() == nil {
		return SendText(c, text)
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: alert})
}
