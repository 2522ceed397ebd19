package chaos

import (
	"math/rand/v2"
	"sync"
)

// Sampler supplies uniform samples in [0,1).
type Sampler interface {
	Float64() float64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() float64

// Float64 calls f.
func (f SamplerFunc) Float64() float64 {
	return f()
}

// DefaultSampler returns the process-wide random source. It is safe for
// concurrent use.
func DefaultSampler() Sampler {
	return SamplerFunc(rand.Float64)
}

// seededSampler is a deterministic PCG source guarded by a mutex.
type seededSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSampler returns a deterministic Sampler. Two samplers built from
// the same seed yield the same sequence.
func NewSeededSampler(seed uint64) Sampler {
	return &seededSampler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *seededSampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
