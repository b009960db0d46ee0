package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt parses callback payload as a non-negative int.
func PayloadInt(c tele.Context) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(CallbackPayload(c)))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
