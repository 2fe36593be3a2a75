package memory

import (
	"context"
	"fmt"
	"sync"

	ports "revenue/internal/sheets"
	"revenue/internal/snapshot"
)

// Store keeps appended rows in memory. Used when no spreadsheet is configured
// and in tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
	days []string
	err  error
}

var (
	_ ports.ArchiveAppender = (*Store)(nil)
	_ snapshot.Sink         = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// FailWith makes subsequent appends return err; nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// AppendDay stores the row and returns a synthetic row reference.
func (s *Store) AppendDay(_ context.Context, snap snapshot.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, ports.Row(snap))
	s.days = append(s.days, snap.Date)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) SaveArchive(ctx context.Context, snap snapshot.Snapshot) error {
	_, err := s.AppendDay(ctx, snap)
	return err
}

// Rows returns a copy of the appended rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}

// Days returns the dates appended so far, in order.
func (s *Store) Days() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.days...)
}
