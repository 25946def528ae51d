package logfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgar-sessions/sessionize/internal/sessionize"
)

const edgarHeader = "ip,date,time,zone,cik,accession,extention,code,size,idx,norefer,noagent,find,crawler,browser\n"

func readAll(t *testing.T, r *Reader) (ips []string, rowErrs []int) {
	t.Helper()
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return
		}
		var rowErr *sessionize.RowError
		if errors.As(err, &rowErr) {
			rowErrs = append(rowErrs, rowErr.Row)
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ips = append(ips, ev.ClientID)
	}
}

func TestReaderEdgarRows(t *testing.T) {
	input := edgarHeader +
		"101.81.133.jja,2017-06-30,00:00:00,0.0,1608552.0,0001047469-17-004337,-index.htm,200.0,80251.0,1.0,0.0,0.0,9.0,0.0,\n" +
		"107.23.85.jfd,2017-06-30,00:00:01,0.0,1027281.0,0000898430-02-001167,-index.htm,200.0,2825.0,1.0,0.0,0.0,10.0,0.0,\n"

	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.ClientID != "101.81.133.jja" {
		t.Errorf("ClientID = %q", ev.ClientID)
	}
	want := time.Date(2017, 6, 30, 0, 0, 0, 0, time.UTC)
	if !ev.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", ev.Time, want)
	}
	if ev.Row != 2 {
		t.Errorf("Row = %d, want 2 (header is row 1)", ev.Row)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Row != 3 || ev.ClientID != "107.23.85.jfd" {
		t.Errorf("second event = %+v", ev)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after last row = %v, want io.EOF", err)
	}
	if r.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", r.BytesRead(), len(input))
	}
}

func TestReaderHeaderCaseAndOrder(t *testing.T) {
	input := "Time, DATE ,zone,IP\r\n00:00:05,2018-01-01,0,1.1.1.1\r\n"

	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.ClientID != "1.1.1.1" || ev.Time.Second() != 5 {
		t.Errorf("event = %+v", ev)
	}
}

func TestReaderMissingColumn(t *testing.T) {
	tests := []struct {
		name   string
		header string
		column string
	}{
		{"no ip", "date,time\n", "ip"},
		{"no date", "ip,time\n", "date"},
		{"no time", "ip,date\n", "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.header))
			if !errors.Is(err, ErrMissingColumn) {
				t.Fatalf("err = %v, want ErrMissingColumn", err)
			}
			if !strings.Contains(err.Error(), tt.column) {
				t.Errorf("error %q does not name column %q", err, tt.column)
			}
		})
	}
}

func TestReaderEmptyInput(t *testing.T) {
	if _, err := NewReader(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
		t.Errorf("err = %v, want ErrNoHeader", err)
	}
}

func TestReaderHeaderOnly(t *testing.T) {
	r, err := NewReader(strings.NewReader("ip,date,time"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next = %v, want io.EOF", err)
	}
}

func TestReaderRowErrors(t *testing.T) {
	input := "ip,date,time\n" +
		"1.1.1.1,2018-01-01,00:00:00\n" + // row 2
		"2.2.2.2,2018-13-01,00:00:00\n" + // row 3: bad month
		"3.3.3.3,2018-01-01\n" + // row 4: too few fields
		"\n" + // row 5: blank
		"4.4.4.4,2018-01-01,not-a-time\n" + // row 6
		"5.5.5.5,2018-01-01,00:00:09" // row 7, no trailing newline

	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	ips, rowErrs := readAll(t, r)
	if strings.Join(ips, " ") != "1.1.1.1 5.5.5.5" {
		t.Errorf("valid ips = %v", ips)
	}
	if len(rowErrs) != 3 || rowErrs[0] != 3 || rowErrs[1] != 4 || rowErrs[2] != 6 {
		t.Errorf("row errors at %v, want [3 4 6]", rowErrs)
	}
	if r.Row() != 7 {
		t.Errorf("Row() = %d, want 7", r.Row())
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.csv")
	content := "ip,date,time\n1.1.1.1,2018-01-01,00:00:00\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Size() != int64(len(content)) {
		t.Errorf("Size = %d, want %d", r.Size(), len(content))
	}
	ips, _ := readAll(t, r)
	if len(ips) != 1 {
		t.Errorf("read %d events, want 1", len(ips))
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("Open on missing file succeeded")
	}
}

func TestOpenMissingColumnNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	if err := os.WriteFile(path, []byte("ip,date\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if !errors.Is(err, ErrMissingColumn) || !strings.Contains(err.Error(), path) {
		t.Errorf("Open err = %v", err)
	}
}
