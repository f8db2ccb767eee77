package handover

import (
	"strings"
	"testing"

	"github.com/retrouvtout/backend/internal/model"
)

func TestGenerateCodeFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != model.CodeLength {
			t.Fatalf("expected %d chars, got %q", model.CodeLength, code)
		}
		for j := 0; j < len(code); j++ {
			if !strings.ContainsRune(model.CodeAlphabet, rune(code[j])) {
				t.Fatalf("character %q outside alphabet in %q", code[j], code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("expected ~100 distinct codes, got %d", len(seen))
	}
}

func TestGenerateCodeUniform(t *testing.T) {
	// 204000 draws, ~5667 expected per character. A byte-modulo draw would
	// overweight the first four alphabet characters by 12.5%, well past the
	// 6% tolerance; for a uniform draw exceeding it is a >4-sigma event.
	const codes = 34000
	counts := map[byte]int{}
	for i := 0; i < codes; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		for j := 0; j < len(code); j++ {
			counts[code[j]]++
		}
	}

	expected := codes * model.CodeLength / len(model.CodeAlphabet)
	limit := expected * 106 / 100
	for ch, n := range counts {
		if n > limit {
			t.Errorf("character %q drawn %d times, expected ~%d", ch, n, expected)
		}
	}
}
