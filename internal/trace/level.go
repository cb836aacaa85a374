package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff      Level = iota // no tracing
	LevelError                 // ring mode only: dumped on failure
	LevelSentence              // batch + sentence boundaries
	LevelBeam                  // beam expansions
	LevelDebug                 // everything including hypotheses
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelSentence:
		return "sentence"
	case LevelBeam:
		return "beam"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "sentence":
		return LevelSentence, nil
	case "beam":
		return LevelBeam, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|sentence|beam|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelSentence:
		return scope <= ScopeSentence
	case LevelBeam:
		return scope <= ScopeBeam
	case LevelDebug:
		return true
	default:
		return false
	}
}
