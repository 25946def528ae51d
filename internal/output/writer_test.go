package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
)

func sample() []*session.Session {
	t0 := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*session.Session{
		{ClientID: "1.1.1.1", FirstSeen: t0, LastSeen: t0.Add(3 * time.Second), Duration: 4, RequestCount: 2},
		{ClientID: "2.2.2.2", FirstSeen: t0.Add(4 * time.Second), LastSeen: t0.Add(4 * time.Second), Duration: 1, RequestCount: 1},
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(sample()[0])
	want := "1.1.1.1,2018-01-01 00:00:00,2018-01-01 00:00:03,4,2"
	if got != want {
		t.Errorf("FormatLine = %q, want %q", got, want)
	}
}

func TestWriterEmit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.Emit(sample()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Emit wrote through before Flush; expected buffering")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := "1.1.1.1,2018-01-01 00:00:00,2018-01-01 00:00:03,4,2\n" +
		"2.2.2.2,2018-01-01 00:00:04,2018-01-01 00:00:04,1,1\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
	if w.Lines() != 2 {
		t.Errorf("Lines = %d, want 2", w.Lines())
	}
}

func TestWriterEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Emit(nil); err != nil {
		t.Fatalf("Emit(nil): %v", err)
	}
	w.Close()
	if buf.Len() != 0 {
		t.Errorf("empty batch wrote %q", buf.String())
	}
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionization.txt")
	if err := os.WriteFile(path, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Emit(sample()[1:]); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2.2.2.2,2018-01-01 00:00:04,2018-01-01 00:00:04,1,1\n" {
		t.Errorf("file contents = %q (existing file should be truncated)", data)
	}
}

func TestCreateMissingDir(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "missing", "out.txt")); err == nil {
		t.Error("Create in missing directory succeeded")
	}
}
