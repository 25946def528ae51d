// Package sessionize turns a time-ordered stream of access-log events into
// closed sessions.
//
// A Sessionizer makes one left-to-right pass. For each event it first expires
// sessions whose client has been silent longer than the inactivity threshold,
// then folds the event into the table. Closed sessions are handed to a Sink
// in batches, each batch ordered by the rank at which its sessions were opened.
package sessionize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
)

// Sink receives closed sessions. Each call carries one expiry batch (or the
// final drain) already sorted by rank.
type Sink interface {
	Emit(closed []*session.Session) error
}

// Source yields events in ascending time order. Next returns io.EOF after
// the last event. Errors that unwrap to *RowError are skipped by Run; any
// other error aborts the run.
type Source interface {
	Next() (session.Event, error)
}

// RowError reports a single malformed input row. It is recoverable.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result summarises a run.
type Result struct {
	Rows     int `json:"rows"`     // data rows read, including skipped ones
	Events   int `json:"events"`   // rows folded into the table
	Skipped  int `json:"skipped"`  // malformed rows
	Sessions int `json:"sessions"` // sessions emitted
	Open     int `json:"open"`     // sessions open right now
	PeakOpen int `json:"peakOpen"` // most sessions open at once
}

// Sessionizer owns a session table and drives expiry, folding and flushing.
type Sessionizer struct {
	table     *session.Table
	threshold int
	sink      Sink

	lastTime time.Time
	nextRank int
	result   Result

	// OnRowError is called for each skipped row. Defaults to a log line.
	OnRowError func(err *RowError)
	// Progress, when set, is called every ProgressEvery rows.
	Progress      func(Result)
	ProgressEvery int
}

// New returns a Sessionizer that closes sessions after more than threshold
// seconds of inactivity and hands them to sink.
func New(threshold int, sink Sink) *Sessionizer {
	return &Sessionizer{
		table:         session.NewTable(),
		threshold:     threshold,
		sink:          sink,
		OnRowError:    logRowError,
		ProgressEvery: 10000,
	}
}

func logRowError(err *RowError) {
	log.Printf("invalid time or date format, record line %d was removed: %v", err.Row, err.Err)
}

// Process folds a single event, first emitting any sessions that have gone
// stale as of the event's timestamp. Expiry is only re-evaluated when the
// timestamp differs from the previously processed event.
func (s *Sessionizer) Process(ev session.Event) error {
	if !ev.Time.Equal(s.lastTime) {
		if err := s.emit(s.table.Expire(ev.Time, s.threshold)); err != nil {
			return err
		}
	}

	if s.table.Fold(ev.ClientID, ev.Time, s.nextRank) {
		s.nextRank++
	}
	s.lastTime = ev.Time
	s.result.Events++

	open := s.table.Len()
	s.result.Open = open
	if open > s.result.PeakOpen {
		s.result.PeakOpen = open
	}
	return nil
}

// Flush emits every session still open. It is called once at end-of-stream.
func (s *Sessionizer) Flush() error {
	return s.emit(s.table.Drain())
}

func (s *Sessionizer) emit(closed []*session.Session) error {
	s.result.Open = s.table.Len()
	if len(closed) == 0 {
		return nil
	}
	session.SortByRank(closed)
	s.result.Sessions += len(closed)
	if err := s.sink.Emit(closed); err != nil {
		return fmt.Errorf("emitting sessions: %w", err)
	}
	return nil
}

// Open returns copies of the currently open sessions in rank order.
func (s *Sessionizer) Open() []*session.Session {
	return s.table.Open()
}

// Result returns the counters accumulated so far.
func (s *Sessionizer) Result() Result {
	return s.result
}

// Run consumes src until io.EOF, then flushes. Malformed rows are reported
// through OnRowError and skipped. A cancelled ctx stops the run without
// flushing and returns ctx.Err().
func (s *Sessionizer) Run(ctx context.Context, src Source) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.result, err
		}

		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var rowErr *RowError
		if errors.As(err, &rowErr) {
			s.result.Rows++
			s.result.Skipped++
			if s.OnRowError != nil {
				s.OnRowError(rowErr)
			}
			s.reportProgress()
			continue
		}
		if err != nil {
			return s.result, fmt.Errorf("reading events: %w", err)
		}

		s.result.Rows++
		if err := s.Process(ev); err != nil {
			return s.result, err
		}
		s.reportProgress()
	}

	if err := s.Flush(); err != nil {
		return s.result, err
	}
	if s.Progress != nil {
		s.Progress(s.result)
	}
	return s.result, nil
}

func (s *Sessionizer) reportProgress() {
	if s.Progress == nil || s.ProgressEvery <= 0 {
		return
	}
	if s.result.Rows%s.ProgressEvery == 0 {
		s.Progress(s.result)
	}
}
