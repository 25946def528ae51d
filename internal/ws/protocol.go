package ws

import (
	"github.com/edgar-sessions/sessionize/internal/session"
	"github.com/edgar-sessions/sessionize/internal/stats"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgProgress MessageType = "progress"
	MsgComplete MessageType = "complete"
	MsgError    MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload carries every closed session still held in history, in
// emission order.
type SnapshotPayload struct {
	Sessions []*session.Session `json:"sessions"`
	Dropped  int                `json:"dropped,omitempty"` // sessions evicted from history
	Progress *ProgressPayload   `json:"progress,omitempty"`
	Done     bool               `json:"done"`
}

// DeltaPayload carries sessions closed since the previous delta.
type DeltaPayload struct {
	Closed []*session.Session `json:"closed"`
}

type ProgressPayload struct {
	Rows       int   `json:"rows"`
	Skipped    int   `json:"skipped"`
	Sessions   int   `json:"sessions"`
	Open       int   `json:"open"`
	BytesRead  int64 `json:"bytesRead"`
	TotalBytes int64 `json:"totalBytes,omitempty"`
}

type CompletePayload struct {
	Summary stats.Summary `json:"summary"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// clientMessage is what viewers send upstream.
type clientMessage struct {
	Type string `json:"type"`
}
