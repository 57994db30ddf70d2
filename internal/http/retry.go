package http

import (
	"context"
	"math"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// RetryPolicy controls how engine requests are retried while the engine is
// starting or restarting.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is multiplied by 2^n before retry n (n starts at 0).
	BaseDelay time.Duration
	// AttemptTimeout bounds a single attempt.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used for proxied UI requests.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     constants.ProxyMaxRetries,
		BaseDelay:      constants.ProxyBackoffBase,
		AttemptTimeout: constants.ProxyRequestTimeout,
	}
}

// retryStatuses are the gateway/server errors the engine returns while it
// is still coming up.
var retryStatuses = map[int]bool{
	nethttp.StatusInternalServerError: true,
	nethttp.StatusBadGateway:          true,
	nethttp.StatusServiceUnavailable:  true,
	nethttp.StatusGatewayTimeout:      true,
}

// CheckRetry retries connection-level failures and 500/502/503/504. Any
// other status is returned to the caller as is.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return retryStatuses[resp.StatusCode], nil
}

// Backoff returns min * 2^attemptNum, capped at max.
func Backoff(min, max time.Duration, attemptNum int, _ *nethttp.Response) time.Duration {
	wait := time.Duration(float64(min) * math.Pow(2, float64(attemptNum)))
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}

// NewRetryClient wraps rt in a retryablehttp client configured by policy.
// When retries are exhausted the last response or error is handed back
// unchanged so callers can inspect status and body.
func NewRetryClient(rt nethttp.RoundTripper, policy RetryPolicy, log *logging.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &nethttp.Client{
		Transport: rt,
		Timeout:   policy.AttemptTimeout,
	}
	client.RetryMax = policy.MaxRetries
	client.RetryWaitMin = policy.BaseDelay
	client.RetryWaitMax = Backoff(policy.BaseDelay, 0, policy.MaxRetries, nil)
	client.CheckRetry = CheckRetry
	client.Backoff = Backoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = &retryLogger{log: log.Component("proxy")}
	return client
}

// retryLogger implements retryablehttp.LeveledLogger on top of zerolog.
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-request info lines are too noisy at info level.
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}
