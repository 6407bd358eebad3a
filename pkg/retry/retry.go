package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/cvsync/errors"
)

const (
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
	maxMultiplier       = 1000
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError stops Do at the attempt that returned it.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err as final.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return stderrors.As(err, &nre)
}

// TransientOnly retries errors classified transient by the errors package,
// such as an unreachable database or a NATS dial timeout. An invalid DSN or
// an unsupported driver fails at once.
func TransientOnly(err error) bool {
	return errors.IsTransient(err)
}

// Config is a backoff policy.
type Config struct {
	MaxAttempts  int           // 0 runs once
	InitialDelay time.Duration // wait after the first failure
	MaxDelay     time.Duration // cap on any single wait
	Multiplier   float64       // growth factor between waits
	AddJitter    bool          // add up to 25% to each wait

	// ShouldRetry decides whether a failed attempt is retried. Nil retries
	// every error not wrapped with NonRetryable.
	ShouldRetry func(error) bool

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig is the policy of a NATS client built without WithConnectRetry.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
		AddJitter:    true,
	}
}

// StoreOpen is the policy for opening the term store at start-up: a database
// container coming up alongside cvupdate is usually reachable within seconds.
func StoreOpen() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
		ShouldRetry:  TransientOnly,
	}
}

// NATSConnect is the policy for the initial NATS connection.
func NATSConnect() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   defaultMultiplier,
		AddJitter:    true,
	}
}

// Overlay returns c with every positive argument replacing its field.
func (c Config) Overlay(maxAttempts int, initialDelay, maxDelay time.Duration) Config {
	if maxAttempts > 0 {
		c.MaxAttempts = maxAttempts
	}
	if initialDelay > 0 {
		c.InitialDelay = initialDelay
	}
	if maxDelay > 0 {
		c.MaxDelay = maxDelay
	}
	return c
}

// normalized fills zero fields with defaults and rejects inconsistent ones.
func (c Config) normalized() (Config, error) {
	switch {
	case c.InitialDelay < 0:
		return c, stderrors.New("retry: InitialDelay cannot be negative")
	case c.MaxDelay < 0:
		return c, stderrors.New("retry: MaxDelay cannot be negative")
	case c.Multiplier < 0:
		return c, stderrors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = defaultMultiplier
	}
	c.Multiplier = min(c.Multiplier, maxMultiplier)
	if c.MaxDelay < c.InitialDelay {
		return c, stderrors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return c, nil
}

func (c Config) retryable(err error) bool {
	if IsNonRetryable(err) {
		return false
	}
	return c.ShouldRetry == nil || c.ShouldRetry(err)
}

// wait is the sleep after a failure whose base delay is d.
func (c Config) wait(d time.Duration) time.Duration {
	if !c.AddJitter || d < 4 {
		return d
	}
	randMu.Lock()
	defer randMu.Unlock()
	return d + time.Duration(randSource.Int63n(int64(d/4)))
}

// next grows d by the multiplier, capped at MaxDelay.
func (c Config) next(d time.Duration) time.Duration {
	grown := float64(d) * c.Multiplier
	if grown > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(grown)
}

// Do runs fn until it succeeds, returns a final error, or the attempts run
// out. Exhaustion wraps errors.ErrMaxRetriesExceeded and the last error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalized()
	if err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !cfg.retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := cfg.wait(delay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, sleep)
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
		delay = cfg.next(delay)
	}

	return fmt.Errorf("retry failed after %d attempts: %w: %w", cfg.MaxAttempts, errors.ErrMaxRetriesExceeded, lastErr)
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
