// Package mock writes synthetic EDGAR access logs for demos and tests.
package mock

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/edgar-sessions/sessionize/internal/session"
)

// Header is the full EDGAR log header, in the order EDGAR publishes it.
const Header = "ip,date,time,zone,cik,accession,extention,code,size,idx,norefer,noagent,find,crawler,browser"

var extensions = []string{"-index.htm", ".txt", "-index.html", ".xml", ".htm"}

// Generator produces a deterministic log for a given Seed.
type Generator struct {
	Clients int       // size of the client pool
	Seed    int64     // rand seed
	Start   time.Time // timestamp of the first row
	// MaxStep is the largest gap in seconds between consecutive rows.
	MaxStep int
	// BadRowEvery inserts a malformed timestamp every N rows; 0 disables.
	BadRowEvery int
}

// NewGenerator returns a Generator with sensible defaults.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Clients:     25,
		Seed:        seed,
		Start:       time.Date(2017, 6, 30, 0, 0, 0, 0, time.UTC),
		MaxStep:     3,
		BadRowEvery: 0,
	}
}

type mockClient struct {
	ip     string
	weight int // relative request rate
	burst  int // requests left in the current burst
}

// WriteLog writes a header followed by rows data rows in ascending time.
// Clients alternate between bursts and silences, so sessions both expire
// mid-log and re-open later.
func (g *Generator) WriteLog(w io.Writer, rows int) error {
	rng := rand.New(rand.NewSource(g.Seed))
	bw := bufio.NewWriter(w)

	clients := make([]*mockClient, max(g.Clients, 1))
	for i := range clients {
		clients[i] = &mockClient{
			ip:     fmt.Sprintf("%d.%d.%d.%s", 100+rng.Intn(100), rng.Intn(256), rng.Intn(256), anonSuffix(rng)),
			weight: 1 + rng.Intn(5),
		}
	}

	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return err
	}

	now := g.Start
	for i := 0; i < rows; i++ {
		if g.MaxStep > 0 && rng.Intn(3) == 0 {
			now = now.Add(time.Duration(rng.Intn(g.MaxStep+1)) * time.Second)
		}

		c := pick(rng, clients)
		date, clock := now.Format("2006-01-02"), now.Format("15:04:05")
		if g.BadRowEvery > 0 && (i+1)%g.BadRowEvery == 0 {
			clock = "99:99:99"
		}
		ts := date + "," + clock

		_, err := fmt.Fprintf(bw, "%s,%s,0.0,%d.0,%010d-%02d-%06d,%s,200.0,%d.0,0.0,0.0,0.0,%d.0,0.0,\n",
			c.ip, ts,
			1000000+rng.Intn(900000),
			rng.Int63n(9999999999), 10+rng.Intn(8), rng.Intn(999999),
			extensions[rng.Intn(len(extensions))],
			1000+rng.Intn(100000),
			rng.Intn(11),
		)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// pick chooses a client still in a burst, or starts a new burst for a
// weighted random client.
func pick(rng *rand.Rand, clients []*mockClient) *mockClient {
	for _, c := range clients {
		if c.burst > 0 && rng.Intn(2) == 0 {
			c.burst--
			return c
		}
	}

	total := 0
	for _, c := range clients {
		total += c.weight
	}
	n := rng.Intn(total)
	for _, c := range clients {
		n -= c.weight
		if n < 0 {
			c.burst = rng.Intn(6)
			return c
		}
	}
	return clients[len(clients)-1]
}

func anonSuffix(rng *rand.Rand) string {
	b := make([]byte, 3)
	for i := range b {
		b[i] = byte('a' + rng.Intn(10))
	}
	return string(b)
}

// Events returns n in-memory events with timestamps advancing by step.
// Client i%clients issues event i.
func Events(n, clients int, start time.Time, step time.Duration) []session.Event {
	evs := make([]session.Event, n)
	for i := range evs {
		evs[i] = session.Event{
			ClientID: fmt.Sprintf("10.0.0.%d", i%max(clients, 1)),
			Time:     start.Add(time.Duration(i) * step),
			Row:      i + 2,
		}
	}
	return evs
}
