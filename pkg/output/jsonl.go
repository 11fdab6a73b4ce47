package output

import (
	"io"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/waftester/scanhost/pkg/finding"
)

// JSONLSink writes each finding as one JSON object per line.
type JSONLSink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
	err error
}

var _ Sink = (*JSONLSink)(nil)

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w, now: time.Now}
}

func (s *JSONLSink) EmitVulnerability(description string, severity finding.Severity) {
	s.write(Entry{Kind: KindVulnerability, Description: description, Severity: severity})
}

func (s *JSONLSink) EmitInformation(description string) {
	s.write(Entry{Kind: KindInformation, Description: description})
}

func (s *JSONLSink) write(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	e.Time = s.now().UTC()
	if err := json.MarshalWrite(s.w, e); err != nil {
		s.err = err
		return
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		s.err = err
	}
}

// Close reports the first write error and closes the writer if it is
// an io.Closer.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.w.(io.Closer); ok {
		if err := c.Close(); err != nil && s.err == nil {
			s.err = err
		}
	}
	return s.err
}
