// Package output writes closed sessions in the sessionization line format:
//
//	<ip>,<first request>,<last request>,<duration seconds>,<request count>
package output

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/edgar-sessions/sessionize/internal/session"
)

// Writer implements sessionize.Sink over an io.Writer.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	lines  int
}

// NewWriter returns a Writer that buffers lines to w. Call Close (or Flush)
// to push buffered lines out.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates or truncates the file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// FormatLine renders one session without the trailing newline.
func FormatLine(s *session.Session) string {
	b := make([]byte, 0, 64)
	b = appendLine(b, s)
	return string(b)
}

func appendLine(b []byte, s *session.Session) []byte {
	b = append(b, s.ClientID...)
	b = append(b, ',')
	b = s.FirstSeen.AppendFormat(b, session.TimeLayout)
	b = append(b, ',')
	b = s.LastSeen.AppendFormat(b, session.TimeLayout)
	b = append(b, ',')
	b = strconv.AppendInt(b, s.Duration, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(s.RequestCount), 10)
	return b
}

// Emit writes one line per session, in the order given.
func (w *Writer) Emit(closed []*session.Session) error {
	var buf []byte
	for _, s := range closed {
		buf = appendLine(buf[:0], s)
		buf = append(buf, '\n')
		if _, err := w.w.Write(buf); err != nil {
			return err
		}
		w.lines++
	}
	return nil
}

// Lines reports how many lines have been written.
func (w *Writer) Lines() int {
	return w.lines
}

// Flush writes any buffered lines.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and, when the Writer owns a file, closes it.
func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
