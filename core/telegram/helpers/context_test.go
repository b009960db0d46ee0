package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/memebot/core/logger"
)

type metaContext struct {
	tele.Context
	user   *tele.User
	chat   *tele.Chat
	values map[string]interface{}
}

func (c *metaContext) Sender() *tele.User { return c.user }

func (c *metaContext) Chat() *tele.Chat { return c.chat }

func (c *metaContext) Update() tele.Update { return tele.Update{ID: 7} }

func (c *metaContext) Get(key string) interface{} { return c.values[key] }

func (c *metaContext) Set(key string, v interface{}) { c.values[key] = v }

func TestUpdateIDs(t *testing.T) {
	c := &metaContext{user: &tele.User{ID: 42}, chat: &tele.Chat{ID: -100}, values: map[string]interface{}{}}
	chatID, userID := UpdateIDs(c)
	assert.Equal(t, int64(-100), chatID)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, int64(42), SenderID(c))

	empty := &metaContext{values: map[string]interface{}{}}
	chatID, userID = UpdateIDs(empty)
	assert.Zero(t, chatID)
	assert.Zero(t, userID)
}

func TestBuildContextIsCachedPerUpdate(t *testing.T) {
	c := &metaContext{user: &tele.User{ID: 42}, chat: &tele.Chat{ID: 42}, values: map[string]interface{}{}}
	c.Set("rid", "rid-1")

	ctx := BuildContext(c)
	assert.Equal(t, "rid-1", logger.RIDFrom(ctx))

	stored, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, ctx, stored)
	assert.Equal(t, ctx, BuildContext(c))
}
