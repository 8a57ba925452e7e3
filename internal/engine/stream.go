package engine

import (
	"crypto/rand"
	"encoding/hex"
	"math"
	"sync"
)

// Rand is the randomness the games draw from. Intn returns a value in [0, n).
type Rand interface {
	Intn(n int) int
}

// Seeds identifies a reproducible stream.
type Seeds struct {
	Server string `json:"server"`
	Client string `json:"client"`
}

// Stream is a Rand backed by the seeded byte stream. It only ever moves
// forward.
type Stream struct {
	mu sync.Mutex
	bs *byteStream
}

// NewStream returns a deterministic stream for the given seeds.
func NewStream(seeds Seeds) *Stream {
	return &Stream{bs: newByteStream(seeds)}
}

// NewRandomStream seeds a stream from crypto/rand.
func NewRandomStream() *Stream {
	return NewStream(Seeds{Server: randomSeed(32), Client: randomSeed(10)})
}

// Float returns the next float in [0, 1).
func (s *Stream) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bs.float()
}

// Intn maps the next float onto [0, n) with floor(f * n).
func (s *Stream) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	index := int(math.Floor(s.Float() * float64(n)))
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

func randomSeed(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("engine: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
