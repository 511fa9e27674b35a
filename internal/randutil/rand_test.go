package randutil

import "testing"

func TestNewIsDeterministic(t *testing.T) {
	t.Parallel()

	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if got, want := a.Intn(52), b.Intn(52); got != want {
			t.Fatalf("draw %d: sources diverged: %d != %d", i, got, want)
		}
	}
}

func TestNewDifferentSeedsDiverge(t *testing.T) {
	t.Parallel()

	a := New(1)
	b := New(2)
	same := true
	for i := 0; i < 20; i++ {
		if a.Intn(1000) != b.Intn(1000) {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical 20-draw sequences")
	}
}

func TestCryptoIntnBounds(t *testing.T) {
	t.Parallel()

	src := Crypto()
	for _, n := range []int{1, 2, 13, 52} {
		for i := 0; i < 200; i++ {
			v := src.Intn(n)
			if v < 0 || v >= n {
				t.Fatalf("Intn(%d) = %d out of range", n, v)
			}
		}
	}
}

func TestCryptoIntnPanicsOnNonPositive(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for Intn(0)")
		}
	}()
	Crypto().Intn(0)
}
