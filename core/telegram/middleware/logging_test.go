package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/core/logger"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type updateContext struct {
	*storeContext
	upd tele.Update
}

func (c *updateContext) Update() tele.Update { return c.upd }
func (c *updateContext) Chat() *tele.Chat { return c.upd.Message.Chat }
func (c *updateContext) Sender() *tele.User { return c.upd.Message.Sender }
func (c *updateContext) Text() string { return c.upd.Message.Text }

func TestLoggerMiddlewareAttachesContext(t *testing.T) {
	c := &updateContext{
		storeContext: newStoreContext(),
		upd: tele.Update{ID: 5, Message: &tele.Message{
			Text:   "котик",
			Chat:   &tele.Chat{ID: 10, Type: tele.ChatPrivate},
			Sender: &tele.User{ID: 20, Username: "cat_fan"},
		}},
	}

	calls := 0
	handler := LoggerMiddleware(LoggerMiddleware(func(c tele.Context) error {
		calls++
		ctx := tghelpers.BuildContext(c)
		assert.Equal(t, "5:10:20", logger.RIDFrom(ctx))
		assert.Equal(t, int64(20), logger.UserIDFrom(ctx))
		assert.Equal(t, int64(10), logger.ChatIDFrom(ctx))
		return nil
	}))
	require.NoError(t, handler(c))
	assert.Equal(t, 1, calls)
	assert.True(t, seenUpdates.Contains(5))

	attrs := receiptAttrs(c)
	keys := make(map[string]string, len(attrs))
	for _, a := range attrs {
		keys[a.Key] = a.Value.String()
	}
	assert.Equal(t, "private", keys["chat_type"])
	assert.Equal(t, "cat_fan", keys["username"])
	assert.Equal(t, "котик", keys["payload"])
}

func TestRecoverMiddlewareReturnsPanicError(t *testing.T) {
	c := &updateContext{
		storeContext: newStoreContext(),
		upd:          tele.Update{ID: 6, Message: &tele.Message{Chat: &tele.Chat{ID: 1}, Sender: &tele.User{ID: 1}}},
	}
	err := RecoverMiddleware(func(tele.Context) error { panic("nil draft") })(c)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "nil draft", perr.Value)
	assert.Equal(t, "PANIC", perr.Code())
	assert.NotEmpty(t, perr.Stack)

	require.NoError(t, RecoverMiddleware(func(tele.Context) error { return nil })(c))
}
