// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync/atomic"

	"github.com/ismaelmosquera/imrlib-sub001/internal/wavio"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// StartRecording writes the analyzed channel to a mono 16-bit WAV file.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return ErrAlreadyRecording
	}

	w, err := wavio.CreateWriter(filename, int(e.sampleRate))
	if err != nil {
		return err
	}

	e.recMu.Lock()
	e.recorder = w
	e.recMu.Unlock()
	atomic.StoreInt32(&e.isRecording, 1)

	logger.Infof("Recording to %s", filename)
	return nil
}

// StopRecording finalizes the WAV file. It is a no-op when not recording.
func (e *Engine) StopRecording() error {
	if !atomic.CompareAndSwapInt32(&e.isRecording, 1, 0) {
		return nil
	}

	e.recMu.Lock()
	w := e.recorder
	e.recorder = nil
	e.recMu.Unlock()

	if w == nil {
		return nil
	}
	samples := w.Samples()
	if err := w.Close(); err != nil {
		return err
	}
	logger.Infof("Recording stopped (%d samples)", samples)
	return nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}
