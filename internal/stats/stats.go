// Package stats aggregates a sessionization run into a Summary that the
// report, the HTTP API and the terminal viewer all read.
package stats

import (
	"os"
	"sync"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
	"github.com/edgar-sessions/sessionize/internal/sessionize"
	"github.com/shirou/gopsutil/v3/process"
)

// Duration buckets, by upper bound in seconds. The last bucket is open.
var bucketBounds = []struct {
	label string
	max   int64
}{
	{"1s", 1},
	{"2-10s", 10},
	{"11-60s", 60},
	{"1-10m", 600},
	{"10m-1h", 3600},
	{">1h", -1},
}

// Bucket is one bar of the session duration histogram.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Highlight names the session that holds a record.
type Highlight struct {
	ClientID string `json:"clientId"`
	Value    int64  `json:"value"`
}

// Summary is a snapshot of the aggregate counters.
type Summary struct {
	Threshold int `json:"thresholdSec"`

	Rows     int `json:"rows"`
	Skipped  int `json:"skipped"`
	Sessions int `json:"sessions"`
	Requests int `json:"requests"`
	Clients  int `json:"clients"`
	// Clients that produced more than one session.
	ReturningClients int `json:"returningClients"`
	PeakOpen         int `json:"peakOpen"`

	MeanDurationSec float64   `json:"meanDurationSec"`
	Longest         Highlight `json:"longest"`
	Busiest         Highlight `json:"busiest"`
	Durations       []Bucket  `json:"durations"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	Elapsed    float64   `json:"elapsedSec"`
	RSSBytes   uint64    `json:"rssBytes,omitempty"`
	Done       bool      `json:"done"`
}

// Tracker observes closed sessions and run results. It implements
// sessionize.Sink and is safe for concurrent readers.
type Tracker struct {
	mu            sync.Mutex
	summary       Summary
	perClient     map[string]int
	totalDuration int64
	buckets       []int

	now       func() time.Time
	sampleRSS func() (uint64, error)
}

// NewTracker starts a tracker for a run with the given threshold.
func NewTracker(threshold int) *Tracker {
	t := &Tracker{
		perClient: make(map[string]int),
		buckets:   make([]int, len(bucketBounds)),
		now:       time.Now,
		sampleRSS: processRSS,
	}
	t.summary.Threshold = threshold
	t.summary.StartedAt = t.now()
	return t
}

// processRSS reports the resident set size of the current process.
func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

// Emit folds a batch of closed sessions into the summary.
func (t *Tracker) Emit(closed []*session.Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range closed {
		t.summary.Sessions++
		t.summary.Requests += s.RequestCount
		t.totalDuration += s.Duration

		t.perClient[s.ClientID]++
		switch t.perClient[s.ClientID] {
		case 1:
			t.summary.Clients++
		case 2:
			t.summary.ReturningClients++
		}

		if s.Duration > t.summary.Longest.Value {
			t.summary.Longest = Highlight{ClientID: s.ClientID, Value: s.Duration}
		}
		if int64(s.RequestCount) > t.summary.Busiest.Value {
			t.summary.Busiest = Highlight{ClientID: s.ClientID, Value: int64(s.RequestCount)}
		}
		t.buckets[bucketFor(s.Duration)]++
	}
	return nil
}

func bucketFor(d int64) int {
	for i, b := range bucketBounds {
		if b.max < 0 || d <= b.max {
			return i
		}
	}
	return len(bucketBounds) - 1
}

// Observe records in-flight row counters without finishing the run.
func (t *Tracker) Observe(res sessionize.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyResult(res)
}

// Finish records the final run result, the elapsed wall time and the
// process RSS. A failed RSS sample leaves RSSBytes at zero.
func (t *Tracker) Finish(res sessionize.Result) {
	rss, _ := t.sampleRSS()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyResult(res)
	t.summary.FinishedAt = t.now()
	t.summary.Elapsed = t.summary.FinishedAt.Sub(t.summary.StartedAt).Seconds()
	t.summary.RSSBytes = rss
	t.summary.Done = true
}

func (t *Tracker) applyResult(res sessionize.Result) {
	t.summary.Rows = res.Rows
	t.summary.Skipped = res.Skipped
	if res.PeakOpen > t.summary.PeakOpen {
		t.summary.PeakOpen = res.PeakOpen
	}
}

// Summary returns a copy of the current summary.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.summary
	if s.Sessions > 0 {
		s.MeanDurationSec = float64(t.totalDuration) / float64(s.Sessions)
	}
	s.Durations = make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		s.Durations[i] = Bucket{Label: b.label, Count: t.buckets[i]}
	}
	return s
}
