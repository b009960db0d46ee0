package router

import (
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	tg "github.com/m3rciful/memebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes returns one route per registered slash command.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		s, h := summarize(name), cmd.Handler
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  wrap(func(c tele.Context) error { return s.run(c, h) }),
		})
	}

	logger.Info(logger.Background(), "tg.wire", "tg.wire",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}
