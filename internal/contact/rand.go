package contact

import (
	"math/rand/v2"
	"sync"
)

// Rand is the randomness an Extractor consumes. Implementations shared across goroutines
// must be safe for concurrent use.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// GlobalRand returns a Rand backed by math/rand/v2's top-level functions.
func GlobalRand() Rand {
	return globalRand{}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// SeededRand returns a deterministic, concurrency-safe Rand.
func SeededRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
