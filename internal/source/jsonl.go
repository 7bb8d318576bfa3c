// Package source provides event-log readers for the export pipeline.
//
// The binary 1C log formats are read by an external collaborator; this
// package ships a JSON-lines reader that the collaborator (or a test) can
// produce, one SourceRecord object per line.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// ErrPositionMismatch is returned by Seek when a saved position does not
// belong to the reader's file or lies beyond its end.
var ErrPositionMismatch = errors.New("position does not match source file")

// Reader is a sequential, seekable source of log records.
type Reader interface {
	// Next returns the next record, or io.EOF when the source is exhausted.
	Next(ctx context.Context) (models.SourceRecord, error)
	// Position is the position just after the last record returned by Next.
	Position() models.Position
	FileInfo() models.FileInfo
	// Seek resumes reading right after pos.
	Seek(pos models.Position) error
	Close() error
}

// JSONLReader reads records from a JSON-lines file.
type JSONLReader struct {
	dataPath       string
	referencesPath string
	info           models.FileInfo

	f           *os.File
	r           *bufio.Reader
	offset      int64
	eventNumber int64
}

// OpenJSONL opens dataPath for reading. referencesPath is carried through
// positions unchanged and may be empty.
func OpenJSONL(dataPath, referencesPath string) (*JSONLReader, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}

	// Birth time is not portable; the modification time stands in for both.
	mod := st.ModTime().UTC()
	return &JSONLReader{
		dataPath:       dataPath,
		referencesPath: referencesPath,
		info: models.FileInfo{
			Name:       filepath.Base(dataPath),
			CreatedAt:  mod,
			ModifiedAt: mod,
		},
		f: f,
		r: bufio.NewReaderSize(f, 1<<20),
	}, nil
}

// Next decodes the next non-blank line. A malformed line leaves Position at
// its start; re-open the reader before continuing.
func (j *JSONLReader) Next(ctx context.Context) (models.SourceRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.SourceRecord{}, err
		}

		line, err := j.r.ReadBytes('\n')
		if len(line) == 0 {
			if err == nil {
				err = io.EOF
			}
			return models.SourceRecord{}, err
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return models.SourceRecord{}, err
		}

		start := j.offset
		j.offset += int64(len(line))

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		var rec models.SourceRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			j.offset = start
			return models.SourceRecord{}, fmt.Errorf("invalid record at offset %d of %s: %w", start, j.dataPath, err)
		}
		j.eventNumber++
		return rec, nil
	}
}

// Position reports the offset after the last consumed line.
func (j *JSONLReader) Position() models.Position {
	return models.Position{
		EventNumber:           j.eventNumber,
		CurrentFileReferences: j.referencesPath,
		CurrentFileData:       j.dataPath,
		StreamPosition:        j.offset,
	}
}

// FileInfo describes the data file.
func (j *JSONLReader) FileInfo() models.FileInfo {
	return j.info
}

// Seek moves to pos. The position must name this reader's data file.
func (j *JSONLReader) Seek(pos models.Position) error {
	if pos.CurrentFileData != j.dataPath {
		return fmt.Errorf("%w: saved %q, reading %q", ErrPositionMismatch, pos.CurrentFileData, j.dataPath)
	}
	st, err := j.f.Stat()
	if err != nil {
		return err
	}
	if pos.StreamPosition < 0 || pos.StreamPosition > st.Size() {
		return fmt.Errorf("%w: offset %d outside file of %d bytes", ErrPositionMismatch, pos.StreamPosition, st.Size())
	}

	if _, err := j.f.Seek(pos.StreamPosition, io.SeekStart); err != nil {
		return err
	}
	j.r.Reset(j.f)
	j.offset = pos.StreamPosition
	j.eventNumber = pos.EventNumber
	return nil
}

// Close closes the data file.
func (j *JSONLReader) Close() error {
	return j.f.Close()
}
