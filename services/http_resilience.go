// services/http_resilience.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// StatusError is a non-2xx answer from an external API
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable is true for rate limiting and server-side failures
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err was classified as not worth retrying
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// newStatusError reads a short body excerpt and classifies the status
func newStatusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	if statusErr.Retryable() {
		return statusErr
	}
	return &permanentError{err: statusErr}
}

// resilientCaller wraps one external service with a circuit breaker and exponential backoff
type resilientCaller struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	cfg     config.QueueConfig
	logger  zerolog.Logger
}

func newResilientCaller(name string, cfg config.QueueConfig, logger zerolog.Logger) *resilientCaller {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &resilientCaller{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		cfg:     cfg,
		logger:  logger,
	}
}

// Do runs op with a per-attempt timeout, retrying transient failures up to MaxRetries times.
// Permanent failures and an open breaker stop retrying at once; only the former stay permanent.
func (c *resilientCaller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BackoffInitial
	policy.MaxElapsedTime = c.cfg.BackoffMaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := c.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
			return nil, op(callCtx)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%s unavailable: %w", c.name, err))
		case IsPermanent(err):
			return backoff.Permanent(err)
		}
		c.logger.Debug().Err(err).Str("service", c.name).Int("attempt", attempt).Msg("external call failed, retrying")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx))
}
