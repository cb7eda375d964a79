package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_STORAGE_ATTEMPTS = 3
	DEFAULT_STORAGE_BACKOFF  = 500 * time.Millisecond
)

// Retry runs op until it succeeds, attempts are exhausted or ctx is done,
// doubling the wait between attempts. The last error is returned.
func Retry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= attempts {
			return err
		}
		log.Debug().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Retrying storage operation")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
