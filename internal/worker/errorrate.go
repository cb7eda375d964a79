package worker

import (
	"errors"
	"fmt"
	"sync"

	config "github.com/JeroniMan/solana-indexer/configs"
)

var ErrErrorRateExceeded = errors.New("error rate exceeded")

const (
	DEFAULT_ERROR_RATE_WINDOW      = 1000
	DEFAULT_ERROR_RATE_THRESHOLD   = 0.5
	DEFAULT_ERROR_RATE_MIN_SAMPLES = 100
)

// ErrorRate tracks the failure fraction over the most recent outcomes of a
// stage. It is safe for concurrent use.
type ErrorRate struct {
	name       string
	threshold  float64
	minSamples int

	mu       sync.Mutex
	outcomes []bool
	next     int
	count    int
	failures int
}

func NewErrorRate(name string, cfg config.ErrorRateConfig) *ErrorRate {
	window := cfg.Window
	if window <= 0 {
		window = DEFAULT_ERROR_RATE_WINDOW
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DEFAULT_ERROR_RATE_THRESHOLD
	}
	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = DEFAULT_ERROR_RATE_MIN_SAMPLES
	}
	if minSamples > window {
		minSamples = window
	}
	return &ErrorRate{
		name:       name,
		threshold:  threshold,
		minSamples: minSamples,
		outcomes:   make([]bool, window),
	}
}

// Record adds one outcome and returns ErrErrorRateExceeded once enough
// samples are present and the failure fraction is above the threshold.
func (e *ErrorRate) Record(failed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count == len(e.outcomes) {
		if e.outcomes[e.next] {
			e.failures--
		}
	} else {
		e.count++
	}
	e.outcomes[e.next] = failed
	if failed {
		e.failures++
	}
	e.next = (e.next + 1) % len(e.outcomes)

	if e.count < e.minSamples {
		return nil
	}
	rate := float64(e.failures) / float64(e.count)
	if rate > e.threshold {
		return fmt.Errorf("%s: %d of the last %d units failed (%.2f > %.2f): %w",
			e.name, e.failures, e.count, rate, e.threshold, ErrErrorRateExceeded)
	}
	return nil
}

func (e *ErrorRate) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		return 0
	}
	return float64(e.failures) / float64(e.count)
}
