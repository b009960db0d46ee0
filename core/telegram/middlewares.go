package telegram

import (
	"github.com/m3rciful/memebot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain for bots.
// Extra middlewares run after the logger so their output is attributed to the update.
func DefaultMiddlewares(extra ...Middleware) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
	for _, mw := range extra {
		if mw.Use == nil {
			continue
		}
		mws = append(mws, mw)
	}
	return mws
}
