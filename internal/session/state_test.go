package session

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2017-06-30", "00:00:02")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	want := time.Date(2017, 6, 30, 0, 0, 2, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTime = %v, want %v", got, want)
	}
	if FormatTime(got) != "2017-06-30 00:00:02" {
		t.Errorf("FormatTime = %q", FormatTime(got))
	}
}

func TestParseTimeInvalid(t *testing.T) {
	tests := []struct{ date, clock string }{
		{"2017-06-31", "00:00:00"},
		{"2017-06-30", "25:00:00"},
		{"2017/06/30", "00:00:00"},
		{"", ""},
		{"2017-06-30", "00:00"},
	}
	for _, tt := range tests {
		if _, err := ParseTime(tt.date, tt.clock); err == nil {
			t.Errorf("ParseTime(%q, %q) succeeded, want error", tt.date, tt.clock)
		}
	}
}

func TestInclusiveSeconds(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		to   time.Time
		want int64
	}{
		{base, 1},
		{base.Add(5 * time.Second), 6},
		{base.Add(time.Hour), 3601},
	}
	for _, tt := range tests {
		if got := inclusiveSeconds(base, tt.to); got != tt.want {
			t.Errorf("inclusiveSeconds(+%v) = %d, want %d", tt.to.Sub(base), got, tt.want)
		}
	}
}

func TestSortByRank(t *testing.T) {
	s := []*Session{{Rank: 3}, {Rank: 0}, {Rank: 2}}
	SortByRank(s)
	for i, want := range []int{0, 2, 3} {
		if s[i].Rank != want {
			t.Errorf("s[%d].Rank = %d, want %d", i, s[i].Rank, want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := &Session{ClientID: "a", RequestCount: 1}
	c := orig.Clone()
	c.RequestCount = 5
	if orig.RequestCount != 1 {
		t.Error("Clone shares state with the original")
	}
}
