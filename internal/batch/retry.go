package batch

import (
	"context"
	"time"

	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryWait is how long the runner sleeps after a rate limit error.
const DefaultRetryWait = time.Hour

// RetryPolicy retries an operation after a fixed wait while its error is a
// rate limit. Any other error is returned at once. MaxRetries 0 retries
// without bound; the caller's context ends the wait.
type RetryPolicy struct {
	Wait       time.Duration
	MaxRetries uint64
	Marker     string

	timer backoff.Timer
}

// DefaultRetryPolicy waits an hour between attempts and never gives up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Wait: DefaultRetryWait, Marker: pipeline.DefaultRateLimitMarker}
}

// Do runs op until it succeeds, fails with a non rate limit error, the retry
// budget is exhausted or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	wait := p.Wait
	if wait <= 0 {
		wait = DefaultRetryWait
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(wait)
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	operation := func() error {
		err := op()
		if err == nil || pipeline.IsRateLimited(err, p.Marker) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		metrics.RateLimitRetries.Inc()
		log.Warnf("[Batch] 触发速率限制，%s 后重试: %v", next, err)
	}
	return backoff.RetryNotifyWithTimer(operation, b, notify, p.timer)
}
