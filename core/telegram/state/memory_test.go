package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type draft struct {
	Text string
}

const stateTyping State = "typing"
const stateDone State = "done"

func TestGetUnknownUserIsIdle(t *testing.T) {
	s := NewStore[draft]()
	sess := s.Get(42)
	assert.Equal(t, StateIdle, sess.State)
	assert.True(t, sess.Idle())
	assert.Zero(t, s.Len(), "reads must not create sessions")
}

func TestUpdateCreatesAndMutates(t *testing.T) {
	s := NewStore[draft]()
	got := s.Update(1, func(sess *Session[draft]) {
		sess.State = stateTyping
		sess.Data.Text = "hi"
	})
	assert.Equal(t, stateTyping, got.State)
	assert.Equal(t, "hi", s.Get(1).Data.Text)
	assert.True(t, s.InProgress(1))

	s.Clear(1)
	assert.Equal(t, StateIdle, s.GetState(1))
	assert.False(t, s.InProgress(1))
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore[draft]()
	s.Put(1, Session[draft]{State: stateTyping, Data: draft{Text: "a"}})
	sess := s.Get(1)
	sess.Data.Text = "mutated"
	assert.Equal(t, "a", s.Get(1).Data.Text)
}

func TestExtraIdleStatesAreNotInProgress(t *testing.T) {
	s := NewStore[draft](stateDone)
	s.Put(7, Session[draft]{State: stateDone})
	assert.False(t, s.InProgress(7))
	s.Put(7, Session[draft]{State: stateTyping})
	assert.True(t, s.InProgress(7))
}

func TestConcurrentUpdates(t *testing.T) {
	s := NewStore[draft]()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Update(id, func(sess *Session[draft]) { sess.State = stateTyping })
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, s.Len())
}

func TestInProgressCount(t *testing.T) {
	s := NewStore[draft](stateDone)
	s.Put(1, Session[draft]{State: stateTyping})
	s.Put(2, Session[draft]{State: stateDone})
	s.Put(3, Session[draft]{State: StateIdle})
	assert.Equal(t, 1, s.InProgressCount())
}

func TestManagerHandlerDispatchesByState(t *testing.T) {
	s := NewStore[draft]()
	var calls []State
	s.RegisterHandler(stateTyping, func(tele.Context) error {
		calls = append(calls, stateTyping)
		return nil
	})
	s.RegisterHandler(stateDone, nil)

	c := &senderContext{user: &tele.User{ID: 9}, values: map[string]interface{}{}}
	require.NoError(t, s.ManagerHandler(c))
	assert.Empty(t, calls, "idle sessions have no handler")

	s.Put(9, Session[draft]{State: stateTyping})
	require.NoError(t, s.ManagerHandler(c))
	assert.Equal(t, []State{stateTyping}, calls)

	s.Put(9, Session[draft]{State: stateDone})
	require.NoError(t, s.ManagerHandler(c))
	assert.Len(t, calls, 1)
}

type senderContext struct {
	tele.Context
	user   *tele.User
	values map[string]interface{}
}

func (c *senderContext) Sender() *tele.User { return c.user }

func (c *senderContext) Chat() *tele.Chat { return nil }

func (c *senderContext) Update() tele.Update { return tele.Update{ID: 1} }

func (c *senderContext) Get(key string) interface{} { return c.values[key] }

func (c *senderContext) Set(key string, v interface{}) { c.values[key] = v }
