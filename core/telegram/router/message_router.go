package router

import (
	tg "github.com/m3rciful/memebot/core/telegram"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM is the part of the dialog session store the text router needs.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions sets the handlers used when nothing else claims an update.
type TextOptions struct {
	UnknownText tele.HandlerFunc
	// Photo receives every photo message; the handler inspects the session itself.
	Photo tele.HandlerFunc
}

type textRouter struct {
	fsm  FSM
	reg  *tg.Registry
	opts TextOptions
}

// TextRoutes routes text to the active dialog first, then to commands typed
// without the menu, then to the registry's text fallback.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	r := textRouter{fsm: fsm, reg: reg, opts: opts}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(r.onText)},
		{Endpoint: tele.OnPhoto, Handler: wrap(r.onPhoto)},
	}
}

func (r textRouter) onText(c tele.Context) error {
	s, h := r.resolve(c)
	return s.run(c, h)
}

func (r textRouter) onPhoto(c tele.Context) error {
	return summarize("photo").run(c, r.opts.Photo)
}

func (r textRouter) resolve(c tele.Context) (summary, tele.HandlerFunc) {
	if r.fsm != nil && r.fsm.InProgress(tghelpers.SenderID(c)) {
		return summarize("fsm"), r.fsm.ManagerHandler
	}
	if r.reg != nil {
		if key, cmd, ok := r.reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
			return summarize(key), cmd.Handler
		}
		if fb := r.reg.TextFallback(); fb != nil {
			return summarize("fallback"), fb
		}
	}
	return summarize("unknown_text"), r.opts.UnknownText
}
