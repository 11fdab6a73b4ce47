package output

import (
	"sync"
	"time"

	"github.com/waftester/scanhost/pkg/finding"
)

// buffer collects entries for sinks that render everything on Close.
type buffer struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func (b *buffer) EmitVulnerability(description string, severity finding.Severity) {
	b.add(Entry{Kind: KindVulnerability, Description: description, Severity: severity})
}

func (b *buffer) EmitInformation(description string) {
	b.add(Entry{Kind: KindInformation, Description: description})
}

func (b *buffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now == nil {
		b.now = time.Now
	}
	e.Time = b.now().UTC()
	b.entries = append(b.entries, e)
}

func (b *buffer) snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Recorder keeps every emitted entry in memory. It is the sink used by
// tests and by callers that post-process findings themselves.
type Recorder struct {
	buffer
}

var _ Sink = (*Recorder)(nil)

func NewRecorder() *Recorder { return &Recorder{} }

// Entries returns a copy of the recorded entries in emit order.
func (r *Recorder) Entries() []Entry { return r.snapshot() }

// Len returns the number of emit calls seen.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Descriptions returns the recorded descriptions in emit order.
func (r *Recorder) Descriptions() []string {
	entries := r.snapshot()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Description
	}
	return out
}
