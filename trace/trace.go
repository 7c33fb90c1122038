// Package trace persists per-tick pose records as zstd-compressed JSON
// lines, one file per simulation run.
package trace

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/robosim/stagehand/geom"
	"github.com/segmentio/encoding/json"
)

// Record is one model's state at one world tick.
type Record struct {
	SimTime string    `json:"sim_time"`
	Updates uint64    `json:"updates"`
	ModelID int       `json:"model_id"`
	Name    string    `json:"name"`
	Pose    geom.Pose `json:"pose"`
	Stall   bool      `json:"stall"`
}

// Writer appends records to a single compressed JSONL file. It is safe for
// concurrent use.
type Writer struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter creates <dir>/<runID>.jsonl.zst, creating dir if needed.
func NewWriter(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New("creating trace directory failed").
			WithTag("dir", dir).
			Wrap(err)
	}

	path := filepath.Join(dir, runID+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.New("opening trace file failed").
			WithTag("path", path).
			Wrap(err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, errors.New("creating zstd encoder failed").Wrap(err)
	}

	return &Writer{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the trace file's location.
func (w *Writer) Path() string { return w.path }

// Write appends one record as a JSON line.
func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.New("encoding trace record failed").Wrap(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return errors.New("trace writer is closed")
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes buffered records and closes the file. Further writes fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return nil
	}

	flushErr := w.w.Flush()
	encErr := w.enc.Close()
	fileErr := w.f.Close()

	w.w = nil
	w.enc = nil
	w.f = nil

	if flushErr != nil {
		return flushErr
	}
	if encErr != nil {
		return encErr
	}
	return fileErr
}
