// SPDX-License-Identifier: MIT
//
// Package store persists analyzed spectra in SQLite so that a stream can be
// resynthesized or inspected later without re-reading the source audio.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ismaelmosquera/imrlib-sub001/internal/analysis"
	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/window"
	_ "github.com/mattn/go-sqlite3"
)

var logger = applog.Component("Store")

// ErrStreamNotFound is returned for unknown stream IDs.
var ErrStreamNotFound = errors.New("store: stream not found")

// Stream describes how a stored stream was analyzed.
type Stream struct {
	ID          int64
	Name        string
	SampleRate  float64
	FrameLength int
	ShiftSize   int
	Kind        window.Kind
	Windowed    bool
	Frames      int // Stored spectra, filled by Streams.
	CreatedAt   time.Time
}

// Store is a SQLite-backed spectrum store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	logger.Debugf("Opened %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func createTables(db *sql.DB) error {
	createStreamsTable := `
    CREATE TABLE IF NOT EXISTS streams (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        sample_rate REAL NOT NULL,
        frame_length INTEGER NOT NULL,
        shift_size INTEGER NOT NULL,
        window TEXT NOT NULL,
        windowed INTEGER NOT NULL,
        created_at INTEGER NOT NULL
    );
    `

	createSpectraTable := `
    CREATE TABLE IF NOT EXISTS spectra (
        stream_id INTEGER NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
        frame_index INTEGER NOT NULL,
        frame_length INTEGER NOT NULL,
        coefficients BLOB NOT NULL,
        PRIMARY KEY (stream_id, frame_index)
    );
    `

	if _, err := db.Exec(createStreamsTable); err != nil {
		return fmt.Errorf("error creating streams table: %w", err)
	}
	if _, err := db.Exec(createSpectraTable); err != nil {
		return fmt.Errorf("error creating spectra table: %w", err)
	}
	return nil
}

// CreateStream records a new stream and returns its ID.
func (s *Store) CreateStream(ctx context.Context, st Stream) (int64, error) {
	if !st.Kind.Valid() {
		return 0, fmt.Errorf("%w: %d", window.ErrUnknownKind, int(st.Kind))
	}
	created := st.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO streams (name, sample_rate, frame_length, shift_size, window, windowed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		st.Name, st.SampleRate, st.FrameLength, st.ShiftSize, st.Kind.String(), st.Windowed, created.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("error adding stream: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting stream ID: %w", err)
	}
	logger.Debugf("Created stream %d (%s)", id, st.Name)
	return id, nil
}

// SaveSpectrum stores one spectrum at frame index of a stream, replacing
// any spectrum already there.
func (s *Store) SaveSpectrum(ctx context.Context, streamID int64, index int, spec *analysis.Spectrum) error {
	blob, err := encodeCoefficients(spec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO spectra (stream_id, frame_index, frame_length, coefficients) VALUES (?, ?, ?, ?)",
		streamID, index, spec.FrameLength, blob)
	if err != nil {
		return fmt.Errorf("error saving spectrum %d: %w", index, err)
	}
	return nil
}

// SaveSpectra stores spectra as frames 0..len-1 of a stream in one
// transaction.
func (s *Store) SaveSpectra(ctx context.Context, streamID int64, spectra []*analysis.Spectrum) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO spectra (stream_id, frame_index, frame_length, coefficients) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, spec := range spectra {
		blob, err := encodeCoefficients(spec)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, streamID, i, spec.FrameLength, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("error executing statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing spectra: %w", err)
	}
	logger.Debugf("Saved %d spectra for stream %d", len(spectra), streamID)
	return nil
}

// Stream returns the stream with the given ID.
func (s *Store) Stream(ctx context.Context, id int64) (Stream, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.name, s.sample_rate, s.frame_length, s.shift_size, s.window, s.windowed, s.created_at,
		       (SELECT COUNT(*) FROM spectra p WHERE p.stream_id = s.id)
		FROM streams s WHERE s.id = ?`, id)
	st, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Stream{}, fmt.Errorf("%w: %d", ErrStreamNotFound, id)
	}
	return st, err
}

// Streams lists all streams, oldest first.
func (s *Store) Streams(ctx context.Context) ([]Stream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.sample_rate, s.frame_length, s.shift_size, s.window, s.windowed, s.created_at,
		       (SELECT COUNT(*) FROM spectra p WHERE p.stream_id = s.id)
		FROM streams s ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("error querying streams: %w", err)
	}
	defer rows.Close()

	var streams []Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, st)
	}
	return streams, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStream(sc scanner) (Stream, error) {
	var (
		st      Stream
		kind    string
		created int64
	)
	if err := sc.Scan(&st.ID, &st.Name, &st.SampleRate, &st.FrameLength, &st.ShiftSize,
		&kind, &st.Windowed, &created, &st.Frames); err != nil {
		return Stream{}, err
	}
	k, err := window.ParseKind(kind)
	if err != nil {
		return Stream{}, fmt.Errorf("stream %d: %w", st.ID, err)
	}
	st.Kind = k
	st.CreatedAt = time.Unix(0, created)
	return st, nil
}

// LoadSpectra returns the spectra of a stream in frame order, tagged with
// the stream's analysis parameters.
func (s *Store) LoadSpectra(ctx context.Context, streamID int64) ([]*analysis.Spectrum, error) {
	st, err := s.Stream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT frame_length, coefficients FROM spectra WHERE stream_id = ? ORDER BY frame_index", streamID)
	if err != nil {
		return nil, fmt.Errorf("error querying spectra: %w", err)
	}
	defer rows.Close()

	spectra := make([]*analysis.Spectrum, 0, st.Frames)
	for rows.Next() {
		var (
			frameLength int
			blob        []byte
		)
		if err := rows.Scan(&frameLength, &blob); err != nil {
			return nil, fmt.Errorf("error scanning spectrum: %w", err)
		}
		coeffs, err := decodeCoefficients(blob, frameLength)
		if err != nil {
			return nil, err
		}
		spectra = append(spectra, &analysis.Spectrum{
			Coefficients: coeffs,
			FrameLength:  frameLength,
			SampleRate:   st.SampleRate,
			Kind:         st.Kind,
			Windowed:     st.Windowed,
		})
	}
	return spectra, rows.Err()
}

// Coefficients are stored as little-endian (real, imag) float64 pairs.
func encodeCoefficients(spec *analysis.Spectrum) ([]byte, error) {
	if spec == nil || len(spec.Coefficients) != spec.FrameLength/2+1 {
		return nil, fmt.Errorf("%w: malformed spectrum", analysis.ErrSizeMismatch)
	}
	var buf bytes.Buffer
	buf.Grow(16 * len(spec.Coefficients))
	if err := binary.Write(&buf, binary.LittleEndian, spec.Coefficients); err != nil {
		return nil, fmt.Errorf("error encoding coefficients: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCoefficients(blob []byte, frameLength int) ([]complex128, error) {
	bins := frameLength/2 + 1
	if len(blob) != 16*bins {
		return nil, fmt.Errorf("%w: %d bytes for frame length %d", analysis.ErrSizeMismatch, len(blob), frameLength)
	}
	coeffs := make([]complex128, bins)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, coeffs); err != nil {
		return nil, fmt.Errorf("error decoding coefficients: %w", err)
	}
	return coeffs, nil
}
