package session

import (
	"math"
	"sort"
	"time"
)

// TimeLayout is the second-resolution, zone-less layout shared by the access
// log and the sessionization output.
const TimeLayout = "2006-01-02 15:04:05"

// ParseTime combines a log row's date and time fields into one instant.
func ParseTime(date, clock string) (time.Time, error) {
	return time.Parse(TimeLayout, date+" "+clock)
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Session is one burst of activity by a single client. While open it is
// owned by a Table; once expired or drained it is handed out as a value the
// caller may retain.
type Session struct {
	ClientID     string    `json:"clientId"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	RequestCount int       `json:"requestCount"`
	Duration     int64     `json:"durationSec"`
	Rank         int       `json:"rank"` // order of creation, used only for output ordering
}

// Clone returns an independent copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// touch folds one more request at t into the session.
func (s *Session) touch(t time.Time) {
	s.LastSeen = t
	s.RequestCount++
	s.Duration = inclusiveSeconds(s.FirstSeen, t)
}

// inclusiveSeconds is floor(to - from) + 1, so a single instant spans one second.
func inclusiveSeconds(from, to time.Time) int64 {
	return wholeSeconds(to.Sub(from)) + 1
}

func wholeSeconds(d time.Duration) int64 {
	return int64(math.Floor(d.Seconds()))
}

// SortByRank orders sessions by ascending Rank in place.
func SortByRank(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Rank < sessions[j].Rank
	})
}
