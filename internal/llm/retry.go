package llm

import (
	"context"
	"errors"
	"net"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
)

// Retryable reports whether an error is a transient signal worth
// retrying: rate limits, server overload, timeouts and network failures.
// Deterministic errors (bad request, auth, parse failures) are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrParseFailed) || errors.Is(err, domain.ErrBadInput) {
		return false
	}
	if errors.Is(err, domain.ErrTransient) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		return code == 408 || code == 429 || (code >= 500 && code <= 599)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// WithRetry runs fn under a capped exponential backoff policy, retrying
// only transient errors. The final error is returned unwrapped so callers
// can still classify it.
func WithRetry[T any](ctx context.Context, cfg config.RetryConfig, fn func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.MaxElapsed > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsed
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var wrapped backoff.BackOff = backoff.WithMaxRetries(policy, uint64(attempts-1))
	wrapped = backoff.WithContext(wrapped, ctx)

	return backoff.RetryWithData(func() (T, error) {
		v, err := fn()
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, wrapped)
}
