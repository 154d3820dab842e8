// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package verifycode

import "testing"

func TestNewShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := New()
		if len(code) != Length {
			t.Fatalf("New() = %q, want %d characters", code, Length)
		}
		if !Valid(code) {
			t.Fatalf("New() = %q fails Valid", code)
		}
	}
}

func TestNewVaries(t *testing.T) {
	// Statistical, not absolute: 100 draws from a 36^8 space
	// colliding would indicate a broken random source.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := New()
		if seen[code] {
			t.Fatalf("duplicate code %q in 100 draws", code)
		}
		seen[code] = true
	}
}

func TestNewDrawsUniformly(t *testing.T) {
	// A plain byte-mod-36 draw makes the first 256 mod 36 = 4
	// characters about 14% more likely than the rest: over 160000
	// character draws they would show up near 5000 times against a
	// uniform mean of ~4444. The ±400 bounds are six standard
	// deviations for the uniform draw, so a false failure is
	// effectively impossible while a biased draw trips the upper
	// bound reliably.
	const draws = 20000
	counts := make(map[byte]int, len(alphabet))
	for i := 0; i < draws; i++ {
		code := New()
		for i := 0; i < Length; i++ {
			counts[code[i]]++
		}
	}

	mean := float64(draws*Length) / float64(len(alphabet))
	for _, c := range []byte(alphabet) {
		n := float64(counts[c])
		if n < mean-400 || n > mean+400 {
			t.Errorf("character %q drawn %.0f times, expected about %.0f", c, n, mean)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"AB12CD34", true},
		{"ZZZZZZZZ", true},
		{"ab12cd34", false}, // lowercase
		{"AB12CD3", false},  // short
		{"AB12CD345", false},
		{"AB12CD3!", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.code); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
