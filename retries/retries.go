package retries

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 100 * time.Millisecond

	HealthAttempts  = 2
	HealthBaseDelay = 50 * time.Millisecond
)

// Retry runs fn up to attempts times, doubling the delay after each
// retriable failure. A non-retriable error is returned immediately.
func Retry(
	ctx context.Context,
	attempts int,
	baseDelay time.Duration,
	fn func() error,
	retriable func(error) bool,
) error {
	if attempts < 1 {
		attempts = 1
	}

	delay := baseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if retriable != nil && !retriable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

var retriableDbCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
}

func IsRetriableDbError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retriableDbCodes[apiErr.ErrorCode()]
	}
	// transport level failures (connection reset, dns) carry no api code
	return true
}
