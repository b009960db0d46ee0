package sender

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m3rciful/memebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// retryPolicy is an exponential backoff that waits at least as long as the
// last flood error asked for.
type retryPolicy struct {
	*backoff.ExponentialBackOff
	floodWait time.Duration
}

func newRetryPolicy(initial time.Duration) *retryPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 8 * initial
	b.MaxElapsedTime = 0
	b.Reset()
	return &retryPolicy{ExponentialBackOff: b}
}

// observe records err and reports whether it is worth another attempt.
func (p *retryPolicy) observe(err error) bool {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		p.floodWait = time.Duration(flood.RetryAfter) * time.Second
		return true
	}
	return netutil.ShouldRetry(err)
}

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.ExponentialBackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	wait := p.floodWait
	p.floodWait = 0
	return max(next, wait)
}

func (p *retryPolicy) Reset() {
	p.ExponentialBackOff.Reset()
	p.floodWait = 0
}
