package sessionid

import (
	"strings"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/randutil"
)

func TestNewProducesWellFormedIDs(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		for _, c := range id {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("id %q contains %q outside the alphabet", id, c)
			}
		}
		// 128 bits in 130 bit positions leaves the first character 0-7.
		if id[0] > '7' {
			t.Fatalf("id %q first character out of range", id)
		}
		if seen[id] {
			t.Fatalf("id %q repeated", id)
		}
		seen[id] = true
	}
}

func TestIDsSortByCreationTime(t *testing.T) {
	t.Parallel()
	g := NewGenerator(randutil.New(1))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	earlier := encode(g.uuidv7(at))
	later := encode(g.uuidv7(at.Add(time.Millisecond)))
	if earlier >= later {
		t.Errorf("ids should sort by timestamp: %q !< %q", earlier, later)
	}
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := encode(NewGenerator(randutil.New(7)).uuidv7(at))
	b := encode(NewGenerator(randutil.New(7)).uuidv7(at))
	if a != b {
		t.Errorf("same seed and instant should agree: %q != %q", a, b)
	}
	c := encode(NewGenerator(randutil.New(8)).uuidv7(at))
	if a == c {
		t.Errorf("different seeds should not collide at the same instant")
	}
}

func TestVersionAndVariantBits(t *testing.T) {
	t.Parallel()
	g := NewGenerator(randutil.New(1))
	id := g.uuidv7(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if got := id[6] >> 4; got != 7 {
		t.Errorf("version nibble = %d, want 7", got)
	}
	if got := id[8] >> 6; got != 0b10 {
		t.Errorf("variant bits = %b, want 10", got)
	}
}
