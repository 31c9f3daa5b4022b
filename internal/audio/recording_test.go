// SPDX-License-Identifier: MIT
package audio

import (
	"path/filepath"
	"testing"

	"github.com/ismaelmosquera/imrlib-sub001/internal/wavio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingCapturesFirstChannel(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "live.wav")
	e := newTestEngine(t, 2)

	require.NoError(t, e.StartRecording(filename))
	assert.True(t, e.Recording())

	buf := make([]int16, 2*testHopSize)
	for i := 0; i < testHopSize; i++ {
		buf[2*i] = int16(i - 256)
		buf[2*i+1] = 12345
	}
	const buffers = 3
	for n := 0; n < buffers; n++ {
		e.processInputStream(buf)
	}

	require.NoError(t, e.StopRecording())
	assert.False(t, e.Recording())
	require.NoError(t, e.StopRecording(), "second stop should be a no-op")

	r, err := wavio.OpenReader(filename)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, testSampleRate, r.SampleRate())
	assert.Equal(t, 1, r.Channels())
	assert.Equal(t, buffers*testHopSize, r.Samples())
}

func TestRecordingErrors(t *testing.T) {
	e := newTestEngine(t, 1)

	err := e.StartRecording(filepath.Join(t.TempDir(), "missing", "dir", "file.wav"))
	assert.Error(t, err, "invalid path should fail")
	assert.False(t, e.Recording())

	filename := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, e.StartRecording(filename))
	assert.ErrorIs(t, e.StartRecording(filename), ErrAlreadyRecording)
	require.NoError(t, e.Close())
	assert.False(t, e.Recording())
}

func TestStopWithoutRecording(t *testing.T) {
	e := newTestEngine(t, 1)
	assert.NoError(t, e.StopRecording())
	assert.NoError(t, e.Close())
}
