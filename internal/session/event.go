package session

import "time"

// Event is a single parsed access-log request.
type Event struct {
	ClientID string
	Time     time.Time
	Row      int // 1-based line number in the source, header is row 1
}
