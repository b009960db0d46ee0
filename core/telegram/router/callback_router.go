package router

import (
	"log/slog"

	tg "github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound is used when the registry has no fallback of its own.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by callback key.
// Handlers answer the callback themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, payload := callbacks.ParseCallbackData(c.Callback())
		attrs := []slog.Attr{slog.String("cb_key", key), slog.String("payload", payload)}

		if h, ok := reg.Callback(key); ok && h != nil {
			return summarize("callback."+handlerName(key), attrs...).run(c, h)
		}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			fallback = func(c tele.Context) error { return c.Respond() }
		}
		attrs = append(attrs, slog.String("reason", "not_found"))
		return summarize("callback."+handlerName(key), attrs...).run(c, fallback)
	})}
}
