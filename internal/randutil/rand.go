// Package randutil supplies the randomness sources used for shuffling.
// Production decks draw from a crypto-strong source so shuffle outcomes are
// not predictable from prior hands; tests inject a seeded source for
// reproducible sequences.
package randutil

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// Source yields uniform random ints in [0, n). The deck shuffle takes a
// Source so call sites choose between the crypto-backed default and a
// deterministic seeded stream.
type Source interface {
	Intn(n int) int
}

// New returns a seeded deterministic Source. The helper centralises how we
// derive the two 64-bit seeds required by rand/v2 so that all call sites get
// reproducible sequences.
func New(seed int64) Source {
	u := uint64(seed)
	return pcgSource{rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

type pcgSource struct{ r *rand.Rand }

func (s pcgSource) Intn(n int) int { return s.r.IntN(n) }

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Crypto returns a Source backed by crypto/rand. Intn uses rejection
// sampling so results stay uniform.
func Crypto() Source {
	return cryptoSource{}
}

type cryptoSource struct{}

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("randutil: Intn called with non-positive n")
	}
	// Largest multiple of n that fits in a uint64; values at or above it
	// would bias the modulo and are redrawn.
	limit := ^uint64(0) - ^uint64(0)%uint64(n)
	var buf [8]byte
	for {
		if _, err := cryptorand.Read(buf[:]); err != nil {
			panic("randutil: crypto source unavailable: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % uint64(n))
		}
	}
}
