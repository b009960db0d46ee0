package middleware

import (
	"slices"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// Counters tracks the replies sent while handling one update. Sends may
// complete on dispatcher goroutines.
type Counters struct {
	messages atomic.Int32
	photos   atomic.Int32
	keyboard atomic.Bool
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Messages int
	Photos   int
	Keyboard bool
}

func (c *Counters) observe(what interface{}, opts []interface{}) {
	c.messages.Add(1)
	if isPhoto(what) {
		c.photos.Add(1)
	}
	if hasKeyboard(opts) {
		c.keyboard.Store(true)
	}
}

// Snapshot returns the current values. A nil receiver yields zeros.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Messages: int(c.messages.Load()),
		Photos:   int(c.photos.Load()),
		Keyboard: c.keyboard.Load(),
	}
}

func isPhoto(what interface{}) bool {
	switch what.(type) {
	case *tele.Photo, tele.Photo:
		return true
	default:
		return false
	}
}

func hasKeyboard(opts []interface{}) bool {
	return slices.ContainsFunc(opts, func(o interface{}) bool {
		switch v := o.(type) {
		case *tele.SendOptions:
			return v != nil && v.ReplyMarkup != nil
		case *tele.ReplyMarkup:
			return v != nil
		default:
			return false
		}
	})
}

// countingContext wraps tele.Context so every successful reply is counted.
type countingContext struct {
	tele.Context
	counters *Counters
}

func (m countingContext) counted(send func(interface{}, ...interface{}) error, what interface{}, opts []interface{}) error {
	if err := send(what, opts...); err != nil {
		return err
	}
	m.counters.observe(what, opts)
	return nil
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Send, what, opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Reply, what, opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Edit, what, opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.EditOrSend, what, opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.EditOrReply, what, opts)
}

// MessageMetricsMiddleware counts replies, photos and keyboards sent while handling an update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &Counters{}
		c.Set(countersKey, counters)
		return next(countingContext{Context: c, counters: counters})
	}
}

// GetCounters reads the reply counters for the current update.
func GetCounters(c tele.Context) Snapshot {
	counters, _ := c.Get(countersKey).(*Counters)
	return counters.Snapshot()
}
