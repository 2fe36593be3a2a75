package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"revenue/internal/log"
)

const (
	CurrentFile = "revenue.json"
	DailyDir    = "daily"
)

// Encode renders s as indented UTF-8 JSON with non-ASCII text kept literal.
func Encode(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a document written by Encode.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// FileWriter keeps the current snapshot and the daily archive under one directory.
type FileWriter struct {
	dir    string
	logger *log.Logger
}

func NewFileWriter(dir string, logger *log.Logger) *FileWriter {
	if logger == nil {
		logger = log.Discard()
	}
	return &FileWriter{dir: dir, logger: logger.WithComponent(log.ComponentSnapshot)}
}

// CurrentPath is where WriteCurrent puts the live snapshot.
func (w *FileWriter) CurrentPath() string {
	return filepath.Join(w.dir, CurrentFile)
}

// ArchivePath is where WriteArchive puts the snapshot for date.
func (w *FileWriter) ArchivePath(date string) string {
	return filepath.Join(w.dir, DailyDir, date+"_data.json")
}

// WriteCurrent replaces the live snapshot.
func (w *FileWriter) WriteCurrent(ctx context.Context, s Snapshot) error {
	path := w.CurrentPath()
	if err := writeJSON(path, s); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Snapshot written",
		log.FieldOperation, log.OpWrite,
		log.FieldPath, path,
		log.FieldBusinessDate, s.Date,
		log.FieldTime, s.Time)
	return nil
}

// WriteArchive stores s under its own date. An existing archive for the date
// is overwritten, so repeated runs inside the window converge.
func (w *FileWriter) WriteArchive(ctx context.Context, s Snapshot) error {
	path := w.ArchivePath(s.Date)
	if err := writeJSON(path, s); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Day archived to file",
		log.FieldOperation, log.OpArchive,
		log.FieldPath, path,
		log.FieldBusinessDate, s.Date)
	return nil
}

// ReadArchive loads the archived snapshot for date.
func (w *FileWriter) ReadArchive(date string) (Snapshot, error) {
	data, err := os.ReadFile(w.ArchivePath(date))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read archive %s: %w", date, err)
	}
	return Decode(data)
}

// SaveArchive lets the file writer act as an archive Sink.
func (w *FileWriter) SaveArchive(ctx context.Context, s Snapshot) error {
	return w.WriteArchive(ctx, s)
}

// writeJSON writes through a temp file and renames it so readers never see a
// partial document.
func writeJSON(path string, s Snapshot) (err error) {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Sink receives archived snapshots.
type Sink interface {
	SaveArchive(ctx context.Context, s Snapshot) error
}

// NamedSink tags a sink for logging and marks whether its failure is fatal.
type NamedSink struct {
	Name     string
	Sink     Sink
	Optional bool
}

// MultiSink fans an archive out to several sinks in order. Failures of
// optional sinks are logged; failures of required sinks are returned joined.
type MultiSink struct {
	sinks  []NamedSink
	logger *log.Logger
}

func NewMultiSink(logger *log.Logger, sinks ...NamedSink) *MultiSink {
	if logger == nil {
		logger = log.Discard()
	}
	return &MultiSink{sinks: sinks, logger: logger.WithComponent(log.ComponentSnapshot)}
}

func (m *MultiSink) SaveArchive(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, ns := range m.sinks {
		if ns.Sink == nil {
			continue
		}
		if err := ns.Sink.SaveArchive(ctx, s); err != nil {
			if ns.Optional {
				m.logger.WarnContext(ctx, "Optional archive sink failed",
					"sink", ns.Name,
					log.FieldBusinessDate, s.Date,
					log.FieldError, err.Error())
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", ns.Name, err))
		}
	}
	return errors.Join(errs...)
}
