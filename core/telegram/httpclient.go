package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m3rciful/memebot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	keepAlive        = 30 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 30 * time.Second
	clientTimeout    = 30 * time.Second
	transportRetries = 3
	transportBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Connection-level
// failures are retried before the request reaches telebot's error handling.
//
// There is no response header timeout: getUpdates long polls hold the
// response open for the poll timeout.
func BuildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: transport, retries: transportRetries, wait: transportBackoff},
	}
}

// retryTransport replays requests that failed before a response arrived.
// Requests whose body cannot be rewound are sent once.
type retryTransport struct {
	base    http.RoundTripper
	retries uint64
	wait    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	first := true
	attempt := func() (*http.Response, error) {
		r := req
		if !first {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				r.Body = body
			}
		}
		first = false

		resp, err := base.RoundTrip(r)
		if err != nil && (!replayable || !netutil.ShouldRetry(err)) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	policy := backoff.NewConstantBackOff(t.wait)
	return backoff.RetryWithData(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, t.retries), req.Context()))
}
