// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	"github.com/ismaelmosquera/imrlib-sub001/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spectra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func analyzeFrames(t *testing.T, lengths ...int) []*analysis.Spectrum {
	t.Helper()
	a, err := analysis.NewAnalyzer(window.Gaussian, 16000)
	require.NoError(t, err)
	var out []*analysis.Spectrum
	for _, n := range lengths {
		spec, err := a.Analyze(utils.GenerateComplexWave(n, 16000))
		require.NoError(t, err)
		out = append(out, spec)
	}
	return out
}

func TestSaveAndLoadSpectra(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.CreateStream(ctx, Stream{
		Name: "tone.wav", SampleRate: 16000, FrameLength: 256, ShiftSize: 128,
		Kind: window.Gaussian, Windowed: true,
	})
	require.NoError(t, err)

	// The final frame of a stream is shorter.
	spectra := analyzeFrames(t, 256, 256, 256, 130)
	require.NoError(t, s.SaveSpectra(ctx, id, spectra))

	loaded, err := s.LoadSpectra(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded, len(spectra))
	for i := range spectra {
		assert.Equal(t, spectra[i], loaded[i], "spectrum %d", i)
	}

	st, err := s.Stream(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tone.wav", st.Name)
	assert.Equal(t, 4, st.Frames)
	assert.Equal(t, window.Gaussian, st.Kind)
	assert.False(t, st.CreatedAt.IsZero())
}

func TestSaveSpectrumReplaces(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id, err := s.CreateStream(ctx, Stream{Name: "live", SampleRate: 16000, FrameLength: 64, ShiftSize: 64, Kind: window.Gaussian, Windowed: true})
	require.NoError(t, err)

	spectra := analyzeFrames(t, 64, 64)
	require.NoError(t, s.SaveSpectrum(ctx, id, 0, spectra[0]))
	scaled := spectra[1].Clone()
	scaled.Scale(2)
	require.NoError(t, s.SaveSpectrum(ctx, id, 0, scaled))

	loaded, err := s.LoadSpectra(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, scaled.Coefficients, loaded[0].Coefficients)
}

func TestStreams(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	empty, err := s.Streams(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"a.wav", "b.wav"} {
		_, err := s.CreateStream(ctx, Stream{Name: name, SampleRate: 44100, FrameLength: 1024, ShiftSize: 512, Kind: window.Hamming, Windowed: true})
		require.NoError(t, err)
	}
	streams, err := s.Streams(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "a.wav", streams[0].Name)
	assert.Equal(t, "b.wav", streams[1].Name)
	assert.Equal(t, 0, streams[1].Frames)
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LoadSpectra(ctx, 99)
	assert.ErrorIs(t, err, ErrStreamNotFound)

	_, err = s.CreateStream(ctx, Stream{Name: "bad", Kind: window.Kind(7)})
	assert.ErrorIs(t, err, window.ErrUnknownKind)

	id, err := s.CreateStream(ctx, Stream{Name: "x", SampleRate: 8000, FrameLength: 8, ShiftSize: 8})
	require.NoError(t, err)
	bad := &analysis.Spectrum{Coefficients: make([]complex128, 3), FrameLength: 8}
	assert.ErrorIs(t, s.SaveSpectrum(ctx, id, 0, bad), analysis.ErrSizeMismatch)
	assert.ErrorIs(t, s.SaveSpectra(ctx, id, []*analysis.Spectrum{bad}), analysis.ErrSizeMismatch)
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.CreateStream(ctx, Stream{Name: "p", SampleRate: 16000, FrameLength: 32, ShiftSize: 16, Kind: window.Gaussian, Windowed: true})
	require.NoError(t, err)
	require.NoError(t, s.SaveSpectra(ctx, id, analyzeFrames(t, 32)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	loaded, err := s.LoadSpectra(ctx, id)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
