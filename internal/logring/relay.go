package logring

import (
	"strings"
	"sync"
	"time"
)

// DefaultCapacity matches the number of lines the log pane keeps.
const DefaultCapacity = 100

// Severity classifies a log line for display.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// Prefix is the glyph shown in front of a line of this severity.
func (s Severity) Prefix() string {
	switch s {
	case SeverityError:
		return "✗"
	case SeverityWarn:
		return "⚠"
	case SeverityInfo:
		return "✓"
	default:
		return "•"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarn:
		return "warn"
	case SeverityInfo:
		return "info"
	default:
		return "debug"
	}
}

// Line is one relayed log entry. Seq increases by one for every line the
// relay accepts, starting at 1.
type Line struct {
	Seq      uint64
	Time     time.Time
	Severity Severity
	Text     string
}

// Display returns the line with its severity glyph.
func (l Line) Display() string {
	return l.Severity.Prefix() + " " + l.Text
}

// Relay is the shared log buffer. Producers call Append from any goroutine;
// the session drains it with Since on a timer. The lock is only held for the
// duration of a single append or drain.
type Relay struct {
	mu   sync.Mutex
	ring *Ring[Line]
	seq  uint64
	now  func() time.Time
}

// NewRelay returns a relay keeping the last capacity lines.
func NewRelay(capacity int) *Relay {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Relay{ring: NewRing[Line](capacity), now: time.Now}
}

// Append records text at the given severity. Blank text is ignored and
// returns false.
func (r *Relay) Append(severity Severity, text string) (Line, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Line{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	line := Line{Seq: r.seq, Time: r.now(), Severity: severity, Text: text}
	r.ring.Push(line)
	return line, true
}

// Since returns the buffered lines with a sequence id strictly greater than
// seq, oldest first. Lines already evicted are not returned.
func (r *Relay) Since(seq uint64) []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.ring.Len()
	if n == 0 || seq >= r.seq {
		return nil
	}
	first := r.ring.At(0).Seq
	skip := 0
	if seq >= first {
		skip = int(seq - first + 1)
	}
	out := make([]Line, 0, n-skip)
	for i := skip; i < n; i++ {
		out = append(out, r.ring.At(i))
	}
	return out
}

// LastSeq returns the id of the most recently appended line, or 0.
func (r *Relay) LastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Len returns the number of buffered lines.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.Len()
}

// Capacity returns the buffer capacity.
func (r *Relay) Capacity() int {
	return r.ring.Cap()
}
