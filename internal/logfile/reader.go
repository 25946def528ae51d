// Package logfile reads EDGAR-style comma-separated access logs.
//
// The first line is a header naming the columns. Only ip, date and time are
// required; they may appear in any position and in any letter case. Each
// following line becomes a session.Event.
package logfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edgar-sessions/sessionize/internal/session"
	"github.com/edgar-sessions/sessionize/internal/sessionize"
)

const (
	ColumnIP   = "ip"
	ColumnDate = "date"
	ColumnTime = "time"
)

var (
	// ErrNoHeader is returned for an input with no header line.
	ErrNoHeader = errors.New("log has no header line")
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("log header is missing a required column")
)

// Reader yields events from a log. It implements sessionize.Source.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer

	idxIP, idxDate, idxTime int
	minFields               int

	row       int
	bytesRead int64
	size      int64
}

// Open opens the log at path and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	if info, err := f.Stat(); err == nil {
		r.size = info.Size()
	}
	return r, nil
}

// NewReader reads the header from r and returns a Reader positioned at the
// first data row.
func NewReader(r io.Reader) (*Reader, error) {
	lr := &Reader{r: bufio.NewReaderSize(r, 64*1024)}

	line, err := lr.readLine()
	if err == io.EOF && len(line) == 0 {
		return nil, ErrNoHeader
	}
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	lr.row = 1

	headers := strings.Split(string(line), ",")
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	for _, col := range []struct {
		name string
		dst  *int
	}{
		{ColumnIP, &lr.idxIP},
		{ColumnDate, &lr.idxDate},
		{ColumnTime, &lr.idxTime},
	} {
		i, ok := index[col.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col.name)
		}
		*col.dst = i
	}
	lr.minFields = max(lr.idxIP, lr.idxDate, lr.idxTime) + 1

	return lr, nil
}

// readLine returns the next line without its terminator. The final line
// may lack a trailing newline.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.r.ReadBytes('\n')
	r.bytesRead += int64(len(line))
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, err
}

// Next returns the next event. Malformed rows yield a *sessionize.RowError
// and the reader remains usable. io.EOF marks the end of the log. Blank
// lines are skipped.
func (r *Reader) Next() (session.Event, error) {
	for {
		line, err := r.readLine()
		if err != nil && err != io.EOF {
			return session.Event{}, err
		}
		if len(line) == 0 {
			if err == io.EOF {
				return session.Event{}, io.EOF
			}
			r.row++
			continue
		}
		r.row++

		return r.parse(string(line))
	}
}

func (r *Reader) parse(line string) (session.Event, error) {
	fields := strings.Split(line, ",")
	if len(fields) < r.minFields {
		return session.Event{}, &sessionize.RowError{
			Row: r.row,
			Err: fmt.Errorf("expected at least %d fields, got %d", r.minFields, len(fields)),
		}
	}

	ts, err := session.ParseTime(strings.TrimSpace(fields[r.idxDate]), strings.TrimSpace(fields[r.idxTime]))
	if err != nil {
		return session.Event{}, &sessionize.RowError{Row: r.row, Err: err}
	}

	return session.Event{
		ClientID: strings.TrimSpace(fields[r.idxIP]),
		Time:     ts,
		Row:      r.row,
	}, nil
}

// Row returns the line number of the last row read. The header is row 1.
func (r *Reader) Row() int {
	return r.row
}

// BytesRead reports how many bytes have been consumed, header included.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// Size is the total size of the underlying file, or 0 when unknown.
func (r *Reader) Size() int64 {
	return r.size
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
