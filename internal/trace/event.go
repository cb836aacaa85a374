package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event.
// Lower values are coarser.
type Scope uint8

const (
	ScopeBatch      Scope = iota + 1 // a whole input file
	ScopeSentence                    // one sentence decode
	ScopeBeam                        // one beam expansion
	ScopeHypothesis                  // single hypotheses (debug only)
)

func (s Scope) String() string {
	switch s {
	case ScopeBatch:
		return "batch"
	case ScopeSentence:
		return "sentence"
	case ScopeBeam:
		return "beam"
	case ScopeHypothesis:
		return "hypothesis"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Name     string            // e.g. "decode", "beam:3"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
