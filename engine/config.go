package engine

import (
	"runtime"
	"time"
)

// Config holds the tunables of the sync engine.
type Config struct {
	// ChunkSize is the number of objects written or deleted per batch.
	ChunkSize int

	// PoolSize is the number of chunks processed concurrently.
	PoolSize int

	// MaxRetries bounds attempts for fetch and embedding calls.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// CallTimeout bounds every external call (fetch, embed, store and
	// index operations). A timed-out call counts as a retriable
	// failure. Non-positive disables the bound.
	CallTimeout time.Duration

	// VerifyWrites enables a read-back check against the search index
	// after every chunk write.
	VerifyWrites bool
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		ChunkSize:   25,
		PoolSize:    poolSize,
		MaxRetries:  3,
		RetryDelay:  500 * time.Millisecond,
		CallTimeout: 30 * time.Second,
	}
}
