package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/memebot/core/logger"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"
	"github.com/m3rciful/memebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// wrap applies the per-route middleware. Routes are wrapped individually so
// a panic is attributed to the handler that raised it.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// summary names a routed handler and carries the extra attributes of its
// handler.handled log line.
type summary struct {
	name  string
	attrs []slog.Attr
}

func summarize(name string, attrs ...slog.Attr) summary {
	return summary{name: handlerName(name), attrs: attrs}
}

// run calls h and logs the result. A nil h is logged as skipped.
func (s summary) run(c tele.Context, h tele.HandlerFunc) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, s.name)

	status, outcome := "skip", "ok"
	var err error
	if h != nil {
		status = "ok"
		if err = h(c); err != nil {
			status, outcome = "fail", "fail"
		}
	}

	replies := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int("messages", replies.Messages),
		slog.Int("photos", replies.Photos),
		slog.Bool("kb", replies.Keyboard),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}, s.attrs...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", s.name),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers an error's own Code() and falls back to its type name,
// upper-cased: *errors.errorString becomes ERRORSTRING.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := fmt.Sprintf("%T", err)
	return strings.ToUpper(name[strings.LastIndexAny(name, ".*")+1:])
}
