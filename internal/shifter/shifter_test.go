// SPDX-License-Identifier: MIT
package shifter

import (
	"errors"
	"fmt"
	"testing"
)

// ramp returns n samples counting up from start.
func ramp(start, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

func newShifter(t *testing.T, frameLength, hop int) *Shifter {
	t.Helper()
	s, err := New(frameLength)
	if err != nil {
		t.Fatalf("New(%d) error: %v", frameLength, err)
	}
	if err := s.SetShiftSize(hop); err != nil {
		t.Fatalf("SetShiftSize(%d) error: %v", hop, err)
	}
	return s
}

func TestConfigureDefaults(t *testing.T) {
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	if s.FrameLength() != 16 || s.ShiftSize() != 16 || s.FrameSize() != 16 {
		t.Errorf("got length=%d shift=%d size=%d, want 16/16/16",
			s.FrameLength(), s.ShiftSize(), s.FrameSize())
	}
	if s.Overlap() != 0 {
		t.Errorf("default overlap = %d, want 0", s.Overlap())
	}
	if _, err := New(0); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("New(0) error = %v, want ErrSizeMismatch", err)
	}
}

func TestSetShiftSizeBounds(t *testing.T) {
	tests := []struct {
		hop     int
		wantErr bool
	}{
		{-1, true},
		{0, true},
		{1, false},
		{8, false},
		{16, false},
		{17, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("hop=%d", tt.hop), func(t *testing.T) {
			s, _ := New(16)
			err := s.SetShiftSize(tt.hop)
			if tt.wantErr && !errors.Is(err, ErrInvalidShift) {
				t.Errorf("SetShiftSize(%d) error = %v, want ErrInvalidShift", tt.hop, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("SetShiftSize(%d) unexpected error: %v", tt.hop, err)
			}
		})
	}
}

func TestOverlapInvariant(t *testing.T) {
	for _, tc := range []struct{ length, hop int }{
		{8, 8}, {8, 4}, {8, 2}, {8, 1}, {1024, 512}, {1024, 256}, {9, 4},
	} {
		t.Run(fmt.Sprintf("L=%d/h=%d", tc.length, tc.hop), func(t *testing.T) {
			s := newShifter(t, tc.length, tc.hop)
			if err := s.Add(ramp(0, tc.length)); err != nil {
				t.Fatal(err)
			}
			next := tc.length
			for k := 0; k < 5; k++ {
				before := s.Frame()
				if got := s.ExpectedChunk(); got != tc.hop {
					t.Fatalf("ExpectedChunk() = %d, want %d", got, tc.hop)
				}
				if err := s.Add(ramp(next, tc.hop)); err != nil {
					t.Fatal(err)
				}
				next += tc.hop
				after := s.Frame()

				shared := tc.length - tc.hop
				for i := 0; i < shared; i++ {
					if before[tc.hop+i] != after[i] {
						t.Fatalf("frame %d: overlap sample %d = %v, want %v", k, i, after[i], before[tc.hop+i])
					}
				}
				// The frame is always the latest contiguous run of the stream.
				for i, v := range after {
					if want := float64(next - tc.length + i); v != want {
						t.Fatalf("frame %d: sample %d = %v, want %v", k, i, v, want)
					}
				}
			}
		})
	}
}

func TestAddChunkLengthErrors(t *testing.T) {
	s := newShifter(t, 8, 4)

	if err := s.Add(ramp(0, 7)); !errors.Is(err, ErrStreamTruncated) {
		t.Errorf("short first chunk error = %v, want ErrStreamTruncated", err)
	}
	if err := s.Add(ramp(0, 9)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("long first chunk error = %v, want ErrSizeMismatch", err)
	}
	if err := s.Add(ramp(0, 8)); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ramp(8, 3)); !errors.Is(err, ErrStreamTruncated) {
		t.Errorf("short chunk without SetFrameSize error = %v, want ErrStreamTruncated", err)
	}
	if err := s.Add(ramp(8, 5)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("long chunk error = %v, want ErrSizeMismatch", err)
	}
}

func TestFinalPartialChunk(t *testing.T) {
	const length, hop, remaining = 16, 8, 3
	s := newShifter(t, length, hop)
	if err := s.Add(ramp(0, length)); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ramp(length, hop)); err != nil {
		t.Fatal(err)
	}

	if err := s.SetFrameSize(s.Overlap() + remaining); err != nil {
		t.Fatalf("SetFrameSize error: %v", err)
	}
	if got := s.ExpectedChunk(); got != remaining {
		t.Fatalf("ExpectedChunk() = %d, want %d", got, remaining)
	}
	if err := s.Add(ramp(length+hop, remaining)); err != nil {
		t.Fatalf("final Add error: %v", err)
	}

	frame := s.Frame()
	if len(frame) != length-hop+remaining {
		t.Fatalf("final frame length = %d, want %d", len(frame), length-hop+remaining)
	}
	for i, v := range frame {
		if want := float64(2*hop + i); v != want {
			t.Errorf("final frame[%d] = %v, want %v", i, v, want)
		}
	}
	if !s.Ended() {
		t.Error("shifter should report the stream as ended")
	}
	if err := s.Add(ramp(0, remaining)); !errors.Is(err, ErrStreamEnded) {
		t.Errorf("Add after final frame error = %v, want ErrStreamEnded", err)
	}

	s.Reset()
	if err := s.Add(ramp(0, length)); err != nil {
		t.Errorf("Add after Reset error: %v", err)
	}
}

func TestShortStreamFirstFrame(t *testing.T) {
	s := newShifter(t, 16, 8)
	if err := s.SetFrameSize(5); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ramp(0, 5)); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Frame()); got != 5 {
		t.Errorf("frame length = %d, want 5", got)
	}
}

func TestSetFrameSizeBounds(t *testing.T) {
	s := newShifter(t, 16, 4)
	if err := s.SetFrameSize(0); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("SetFrameSize(0) error = %v, want ErrSizeMismatch", err)
	}
	if err := s.SetFrameSize(17); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("SetFrameSize(17) error = %v, want ErrSizeMismatch", err)
	}
	_ = s.Add(ramp(0, 16))
	// Overlap is 12 now; the frame must hold at least one new sample.
	if err := s.SetFrameSize(12); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("SetFrameSize(overlap) error = %v, want ErrSizeMismatch", err)
	}
	if err := s.SetFrameSize(13); err != nil {
		t.Errorf("SetFrameSize(overlap+1) error: %v", err)
	}
}

func TestFrameIntoZeroAllocs(t *testing.T) {
	s := newShifter(t, 1024, 512)
	_ = s.Add(ramp(0, 1024))
	chunk := ramp(0, 512)
	dst := make([]float64, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		_ = s.Add(chunk)
		_ = s.FrameInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Add/FrameInto, got %.1f", allocs)
	}
	if err := s.FrameInto(make([]float64, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("FrameInto with short destination error = %v, want ErrSizeMismatch", err)
	}
}

func BenchmarkAdd(b *testing.B) {
	s, _ := New(1024)
	_ = s.SetShiftSize(256)
	_ = s.Add(make([]float64, 1024))
	chunk := make([]float64, 256)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Add(chunk)
	}
}

func TestSetShiftSizeAfterSetFrameSize(t *testing.T) {
	s := newShifter(t, 8, 4)
	if err := s.Add(ramp(1, 8)); err != nil {
		t.Fatal(err)
	}
	// Overlap 4, final frame of 6 takes 2 new samples.
	if err := s.SetFrameSize(6); err != nil {
		t.Fatal(err)
	}
	// Hop 2 would mean overlap 6 and no room for new samples.
	if err := s.SetShiftSize(2); !errors.Is(err, ErrInvalidShift) {
		t.Fatalf("SetShiftSize(2) error = %v, want ErrInvalidShift", err)
	}
	if s.ShiftSize() != 4 {
		t.Fatalf("ShiftSize() = %d after rejected change, want 4", s.ShiftSize())
	}
	// Hop 3 still leaves one new sample.
	if err := s.SetShiftSize(3); err != nil {
		t.Fatalf("SetShiftSize(3) error: %v", err)
	}
	if got := s.ExpectedChunk(); got != 1 {
		t.Fatalf("ExpectedChunk() = %d, want 1", got)
	}
	if err := s.Add(nil); !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("Add(nil) error = %v, want ErrStreamTruncated", err)
	}
}
