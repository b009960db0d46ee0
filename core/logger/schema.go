package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

// Known values of enumerated fields. Unknown statuses pass through lower-cased;
// unknown outcomes are dropped.
var (
	statusValues  = valueSet("ok", "fail", "skip", "retry", "cancelled")
	outcomeValues = valueSet("ok", "fail", "cancelled", "ignored", "rejected", "prompt", "rendered", "saved")
)

func valueSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// enumValue lower-cases v and reports whether it is one of allowed.
func enumValue(v string, allowed map[string]struct{}) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := allowed[v]
	return v, ok
}

// defaultKeyOrder puts identity and outcome first, then dialog and provider
// details, then errors. Keys not listed follow in alphabetical order.
var defaultKeyOrder = []string{
	// record
	"ts", "level", "component", "event", "status",
	// update
	"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type",
	"handler", "op", "cb_key", "outcome", "duration_ms", "messages", "photos", "kb",
	// dialog and favorites
	"state", "from_state", "to_state", "image", "uploaded", "meme", "mode",
	"favorites", "index", "count", "evicted",
	// providers and infrastructure
	"provider", "breaker", "storage", "driver", "db", "host", "port", "listen", "public_url",
	"action", "endpoint", "attempt", "attempts", "delay_ms", "elapsed_ms",
	// request details
	"payload", "lang", "username",
	// errors
	"err", "err_code", "error_kind", "reason", "cause",
}
