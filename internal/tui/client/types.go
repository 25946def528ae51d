// Package client provides WebSocket and HTTP clients for a sessionize server.
// Types mirror the server wire protocol without importing server packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgProgress MessageType = "progress"
	MsgComplete MessageType = "complete"
	MsgError    MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Session mirrors a closed session as published by the server.
type Session struct {
	ClientID     string    `json:"clientId"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	RequestCount int       `json:"requestCount"`
	Duration     int64     `json:"durationSec"`
	Rank         int       `json:"rank"`
}

// --- WebSocket payload types ---

// SnapshotPayload is sent on connect, on resync and periodically.
type SnapshotPayload struct {
	Sessions []*Session       `json:"sessions"`
	Dropped  int              `json:"dropped,omitempty"`
	Progress *ProgressPayload `json:"progress,omitempty"`
	Done     bool             `json:"done"`
}

// DeltaPayload contains sessions closed since the previous message.
type DeltaPayload struct {
	Closed []*Session `json:"closed"`
}

// ProgressPayload reports row counters while the log is being read.
type ProgressPayload struct {
	Rows       int   `json:"rows"`
	Skipped    int   `json:"skipped"`
	Sessions   int   `json:"sessions"`
	Open       int   `json:"open"`
	BytesRead  int64 `json:"bytesRead"`
	TotalBytes int64 `json:"totalBytes,omitempty"`
}

// Fraction returns the share of the input consumed, or -1 when the total
// size is unknown.
func (p ProgressPayload) Fraction() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	f := float64(p.BytesRead) / float64(p.TotalBytes)
	if f > 1 {
		f = 1
	}
	return f
}

// CompletePayload is sent once the whole log has been processed.
type CompletePayload struct {
	Summary Stats `json:"summary"`
}

// ErrorPayload carries a server-side error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// --- HTTP response types ---

// Highlight names the client behind a record value.
type Highlight struct {
	ClientID string `json:"clientId"`
	Value    int64  `json:"value"`
}

// Bucket is one bar of the session duration histogram.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats mirrors the run summary returned by /api/stats.
type Stats struct {
	Threshold        int       `json:"thresholdSec"`
	Rows             int       `json:"rows"`
	Skipped          int       `json:"skipped"`
	Sessions         int       `json:"sessions"`
	Requests         int       `json:"requests"`
	Clients          int       `json:"clients"`
	ReturningClients int       `json:"returningClients"`
	PeakOpen         int       `json:"peakOpen"`
	MeanDurationSec  float64   `json:"meanDurationSec"`
	Longest          Highlight `json:"longest"`
	Busiest          Highlight `json:"busiest"`
	Durations        []Bucket  `json:"durations"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	Elapsed          float64   `json:"elapsedSec"`
	RSSBytes         uint64    `json:"rssBytes,omitempty"`
	Done             bool      `json:"done"`
}

// ServerConfig is returned by /api/config.
type ServerConfig struct {
	Threshold       int  `json:"inactivityPeriod"`
	MaskClientIDs   bool `json:"maskClientIds"`
	FilteredClients bool `json:"filteredClients"`
	HistoryLimit    int  `json:"historyLimit"`
}
