// SPDX-License-Identifier: MIT
package shifter

import "fmt"

// OverlapAdder reassembles a continuous stream from frames that were cut by a
// Shifter with the same frame length and shift. Each output sample is the
// weighted mean of the frame samples that cover it, so frames that already
// carry unit gain (de-windowed synthesis output) reproduce the original
// signal. A sample no frame covers with nonzero weight comes out as zero.
type OverlapAdder struct {
	shiftSize int
	acc       []float64 // Weighted sums, acc[0] is the oldest pending sample.
	cover     []float64 // Summed weights of the frames that touched each sample.
	extent    int       // Pending samples touched by at least one frame.
	pos       int       // Stream position of acc[0].
	lost      []int     // Emitted positions with zero total weight.
}

// NewOverlapAdder returns an OverlapAdder for frames of frameLength samples
// taken every shiftSize samples.
func NewOverlapAdder(frameLength, shiftSize int) (*OverlapAdder, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("%w: frame length %d", ErrSizeMismatch, frameLength)
	}
	if shiftSize <= 0 || shiftSize > frameLength {
		return nil, fmt.Errorf("%w: %d not in (0, %d]", ErrInvalidShift, shiftSize, frameLength)
	}
	return &OverlapAdder{
		shiftSize: shiftSize,
		acc:       make([]float64, frameLength),
		cover:     make([]float64, frameLength),
	}, nil
}

// Add accumulates frame at the current position with unit weight and returns
// the samples that no later frame can touch (at most one shift). The final
// frame of a stream may be shorter than the frame length.
func (o *OverlapAdder) Add(frame []float64) ([]float64, error) {
	return o.AddWeighted(frame, nil)
}

// AddWeighted is Add with a per-sample weight. A zero weight marks a sample
// that carries no signal, such as one the synthesis window could not undo,
// so it does not dilute the samples of neighbouring frames. nil weights
// means unit weight everywhere.
func (o *OverlapAdder) AddWeighted(frame, weights []float64) ([]float64, error) {
	if len(frame) == 0 || len(frame) > len(o.acc) {
		return nil, fmt.Errorf("%w: frame %d, capacity %d", ErrSizeMismatch, len(frame), len(o.acc))
	}
	if weights != nil && len(weights) != len(frame) {
		return nil, fmt.Errorf("%w: %d weights for frame %d", ErrSizeMismatch, len(weights), len(frame))
	}
	for i, v := range frame {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		o.acc[i] += w * v
		o.cover[i] += w
	}
	o.extent = max(o.extent, len(frame))
	return o.emit(min(o.shiftSize, o.extent)), nil
}

// Flush returns every pending sample and resets the adder.
func (o *OverlapAdder) Flush() []float64 {
	return o.emit(o.extent)
}

// Unrestored returns the stream positions emitted so far that no frame
// covered with nonzero weight. They were output as zero.
func (o *OverlapAdder) Unrestored() []int { return o.lost }

func (o *OverlapAdder) emit(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if o.cover[i] > 0 {
			out[i] = o.acc[i] / o.cover[i]
		} else {
			o.lost = append(o.lost, o.pos+i)
		}
	}
	o.pos += n
	copy(o.acc, o.acc[n:])
	copy(o.cover, o.cover[n:])
	clear(o.acc[len(o.acc)-n:])
	clear(o.cover[len(o.cover)-n:])
	o.extent -= n
	return out
}
