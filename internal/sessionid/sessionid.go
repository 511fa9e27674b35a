// Package sessionid mints identifiers for live connections. Ids are UUIDv7
// values in lowercase Crockford base32, so ids created later sort later and
// session logs stay greppable in creation order.
package sessionid

import (
	"time"

	"github.com/lox/cardroom/internal/randutil"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator mints session ids from an injectable randomness source.
type Generator struct {
	src randutil.Source
}

// NewGenerator returns a generator drawing from src. A nil src falls back to
// the crypto-backed default.
func NewGenerator(src randutil.Source) *Generator {
	if src == nil {
		src = randutil.Crypto()
	}
	return &Generator{src: src}
}

// New returns a fresh session id from a crypto-backed generator.
func New() string {
	return NewGenerator(nil).New()
}

// New returns a 26-character session id.
func (g *Generator) New() string {
	return encode(g.uuidv7(time.Now()))
}

// uuidv7 builds a 128-bit UUIDv7: a 48-bit millisecond timestamp followed by
// random bits, with the version and variant bits pinned.
func (g *Generator) uuidv7(now time.Time) [16]byte {
	var id [16]byte

	ms := now.UnixMilli()
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)

	for i := 6; i < 16; i++ {
		id[i] = byte(g.src.Intn(256))
	}

	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // variant 10

	return id
}

// encode packs the 128 bits into 26 base32 characters, most significant bits
// first. Two zero bits pad the front, so the first character carries only the
// top three bits and the encoding preserves creation order.
func encode(id [16]byte) string {
	out := make([]byte, 26)
	out[0] = alphabet[id[0]>>5]
	for i := 1; i < 26; i++ {
		off := 5*i - 2
		pos, shift := off/8, off%8

		var v byte
		if shift <= 3 {
			v = (id[pos] >> (3 - shift)) & 0x1f
		} else {
			v = (id[pos] << (shift - 3)) & 0x1f
			v |= id[pos+1] >> (11 - shift)
		}
		out[i] = alphabet[v]
	}
	return string(out)
}
