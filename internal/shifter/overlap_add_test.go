// SPDX-License-Identifier: MIT
package shifter

import (
	"errors"
	"fmt"
	"testing"
)

// TestShiftThenOverlapAdd cuts a stream into overlapping frames and feeds the
// frames straight back; the reassembled stream must equal the input.
func TestShiftThenOverlapAdd(t *testing.T) {
	for _, tc := range []struct{ length, hop, total int }{
		{8, 8, 40},
		{8, 4, 40},
		{8, 2, 38},
		{16, 8, 51}, // Final chunk of 3 samples.
		{1024, 512, 5632},
	} {
		t.Run(fmt.Sprintf("L=%d/h=%d/n=%d", tc.length, tc.hop, tc.total), func(t *testing.T) {
			signal := ramp(1, tc.total)
			s := newShifter(t, tc.length, tc.hop)
			ola, err := NewOverlapAdder(tc.length, tc.hop)
			if err != nil {
				t.Fatal(err)
			}

			var out []float64
			pos := 0
			for pos < tc.total {
				want := s.ExpectedChunk()
				if rem := tc.total - pos; rem < want {
					if err := s.SetFrameSize(s.FrameSize() - want + rem); err != nil {
						t.Fatal(err)
					}
					want = rem
				}
				if err := s.Add(signal[pos : pos+want]); err != nil {
					t.Fatal(err)
				}
				pos += want
				ready, err := ola.Add(s.Frame())
				if err != nil {
					t.Fatal(err)
				}
				out = append(out, ready...)
			}
			out = append(out, ola.Flush()...)

			if len(out) != tc.total {
				t.Fatalf("reassembled %d samples, want %d", len(out), tc.total)
			}
			for i := range out {
				if out[i] != signal[i] {
					t.Fatalf("sample %d = %v, want %v", i, out[i], signal[i])
				}
			}
		})
	}
}

func TestOverlapAdderCoverage(t *testing.T) {
	ola, _ := NewOverlapAdder(4, 2)
	first, _ := ola.Add([]float64{2, 2, 2, 2})
	second, _ := ola.Add([]float64{4, 4, 4, 4})
	tail := ola.Flush()

	got := append(append(first, second...), tail...)
	// Samples 2..3 are covered twice and averaged.
	want := []float64{2, 2, 3, 3, 4, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOverlapAdderWeighted(t *testing.T) {
	ola, _ := NewOverlapAdder(4, 2)
	// The zeroed edges carry no signal and must not dilute the neighbours.
	first, _ := ola.AddWeighted([]float64{0, 2, 2, 0}, []float64{0, 1, 1, 0})
	second, _ := ola.AddWeighted([]float64{0, 2, 2, 0}, []float64{0, 1, 1, 0})
	tail := ola.Flush()

	got := append(append(first, second...), tail...)
	want := []float64{0, 2, 2, 2, 2, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	lost := ola.Unrestored()
	if len(lost) != 2 || lost[0] != 0 || lost[1] != 5 {
		t.Errorf("Unrestored() = %v, want [0 5]", lost)
	}
}

func TestOverlapAdderUnitWeightsRestoreEverything(t *testing.T) {
	ola, _ := NewOverlapAdder(4, 2)
	ola.Add([]float64{1, 1, 1, 1})
	ola.Flush()
	if lost := ola.Unrestored(); len(lost) != 0 {
		t.Errorf("Unrestored() = %v, want none", lost)
	}
}

func TestOverlapAdderErrors(t *testing.T) {
	if _, err := NewOverlapAdder(0, 1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("zero length error = %v, want ErrSizeMismatch", err)
	}
	if _, err := NewOverlapAdder(8, 9); !errors.Is(err, ErrInvalidShift) {
		t.Errorf("hop > length error = %v, want ErrInvalidShift", err)
	}
	ola, _ := NewOverlapAdder(8, 4)
	if _, err := ola.Add(make([]float64, 9)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("oversized frame error = %v, want ErrSizeMismatch", err)
	}
	if _, err := ola.Add(nil); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("empty frame error = %v, want ErrSizeMismatch", err)
	}
	if _, err := ola.AddWeighted(make([]float64, 4), make([]float64, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short weights error = %v, want ErrSizeMismatch", err)
	}
}
