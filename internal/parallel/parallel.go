// Package parallel provides deterministic parallel execution over index
// ranges.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled   bool // Whether parallel execution is enabled.
	Workers   int  // Number of worker goroutines to use.
	ChunkSize int  // Items per chunk; also the sequential cutoff.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:   n > 1,
		Workers:   n,
		ChunkSize: 64,
	}
}

// NumChunks returns how many chunks ForChunks splits n items into.
func NumChunks(n int, cfg Config) int {
	if !cfg.Enabled || n <= cfg.ChunkSize {
		return 1
	}
	return (n + cfg.ChunkSize - 1) / cfg.ChunkSize
}

// ForChunks executes f(chunk, start, end) once per chunk of at most
// cfg.ChunkSize items. Chunk boundaries depend only on n and the chunk
// size, never on the worker count, so callers that reduce per-chunk
// results in chunk order get identical floating point sums on any
// machine.
func ForChunks(n int, f func(chunk, start, end int), cfg Config) {
	chunks := NumChunks(n, cfg)
	if chunks == 1 {
		if n > 0 {
			f(0, 0, n)
		}
		return
	}

	workers := min(cfg.Workers, chunks)
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c := int(next.Add(1)) - 1
				if c >= chunks {
					return
				}
				start := c * cfg.ChunkSize
				end := min(start+cfg.ChunkSize, n)
				f(c, start, end)
			}
		}()
	}
	wg.Wait()
}
