package execpolicy

import "fmt"

// Decision is the classification outcome a rule assigns to a command.
// Decisions are totally ordered by strictness: forbidden > prompt > allow.
type Decision int

const (
	// DecisionAllow marks the command safe to run without confirmation.
	DecisionAllow Decision = iota
	// DecisionPrompt requires user confirmation before the command runs.
	DecisionPrompt
	// DecisionForbidden means the command must never be auto-run.
	DecisionForbidden
)

// String returns the wire name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionPrompt:
		return "prompt"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	switch string(text) {
	case "allow":
		*d = DecisionAllow
	case "prompt":
		*d = DecisionPrompt
	case "forbidden":
		*d = DecisionForbidden
	default:
		return fmt.Errorf("unknown decision %q", text)
	}
	return nil
}

// Stricter returns the stricter of two decisions.
func Stricter(a, b Decision) Decision {
	if a > b {
		return a
	}
	return b
}
