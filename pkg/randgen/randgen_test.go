package randgen

import (
	"strings"
	"sync"
	"testing"
)

func TestAlphaNumeric(t *testing.T) {
	g := New()

	for i := 0; i < 100; i++ {
		s := g.AlphaNumeric(32)
		if len(s) != 32 {
			t.Fatalf("AlphaNumeric(32) length = %d, want 32", len(s))
		}
		for _, c := range s {
			if !strings.ContainsRune(AlphaNumericAlphabet, c) {
				t.Fatalf("AlphaNumeric(32) = %q contains %q outside the alphabet", s, c)
			}
		}
	}
}

func TestAlphaNumeric_NotConstant(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[g.AlphaNumeric(32)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected varying output across calls, got %d distinct values", len(seen))
	}
}

func TestDigits(t *testing.T) {
	s := Digits(16)
	if len(s) != 16 {
		t.Fatalf("Digits(16) length = %d, want 16", len(s))
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("Digits(16) = %q contains non-digit %q", s, c)
		}
	}
}

func TestNonPositiveLengths(t *testing.T) {
	g := New()
	if got := g.AlphaNumeric(0); got != "" {
		t.Errorf("AlphaNumeric(0) = %q, want empty", got)
	}
	if got := g.Digits(-3); got != "" {
		t.Errorf("Digits(-3) = %q, want empty", got)
	}
	if got := g.IntN(0); got != 0 {
		t.Errorf("IntN(0) = %d, want 0", got)
	}
}

type fixedSource struct{ v int }

func (f fixedSource) IntN(n int) int { return f.v % n }

func TestNewWithSource(t *testing.T) {
	g := NewWithSource(fixedSource{v: 10})
	if got := g.AlphaNumeric(4); got != "AAAA" {
		t.Errorf("AlphaNumeric(4) = %q, want AAAA", got)
	}
	if got := g.Digits(3); got != "000" {
		t.Errorf("Digits(3) = %q, want 000", got)
	}
	if got := g.IntN(6); got != 4 {
		t.Errorf("IntN(6) = %d, want 4", got)
	}
}

func TestConcurrentUse(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if len(g.AlphaNumeric(32)) != 32 {
					t.Error("unexpected length")
					return
				}
				if n := g.IntN(6); n < 0 || n >= 6 {
					t.Errorf("IntN(6) = %d out of range", n)
					return
				}
			}
		}()
	}
	wg.Wait()
}
