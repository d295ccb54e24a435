package config

import "time"

// LLMTimeouts centralizes the retry and deadline settings of model calls.
//
// The shortest timeout in the chain wins: a 2-minute HTTP client wrapped in a
// 30-second context fails after 30 seconds.
type LLMTimeouts struct {
	// HTTPClientTimeout bounds connection, TLS handshake and body read.
	HTTPClientTimeout time.Duration

	// RetryBackoffBase is the first backoff after a 429 or 5xx.
	RetryBackoffBase time.Duration

	// RetryBackoffMax caps the exponential backoff.
	RetryBackoffMax time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// DefaultLLMTimeouts returns the defaults used when no config is loaded.
func DefaultLLMTimeouts() LLMTimeouts {
	return LLMTimeouts{
		HTTPClientTimeout: 120 * time.Second,
		RetryBackoffBase:  1 * time.Second,
		RetryBackoffMax:   30 * time.Second,
		MaxRetries:        3,
	}
}

// LLMTimeouts derives the model timeouts from the config file values.
func (c *Config) LLMTimeouts() LLMTimeouts {
	t := DefaultLLMTimeouts()
	t.HTTPClientTimeout = c.GetLLMTimeout()
	return t
}

// Backoff returns the delay before retry attempt n (0-based).
func (t LLMTimeouts) Backoff(n int) time.Duration {
	d := t.RetryBackoffBase
	for i := 0; i < n; i++ {
		d *= 2
		if d >= t.RetryBackoffMax {
			return t.RetryBackoffMax
		}
	}
	return d
}
