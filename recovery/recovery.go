// Package recovery defines the pluggable policy that decides how the
// tokenizer and parser react to malformed content-stream bytes. Read-only
// analysis must survive damaged streams, so the default policy repairs and
// records rather than failing.
package recovery

// Strategy decides what to do when a lexical or structural error is hit.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location identifies where inside a stream an error occurred.
type Location struct {
	ByteOffset int64
	Page       int
	Component  string
}

// Action is the decision returned by a Strategy.
type Action int

const (
	// ActionFail aborts the current operation with the original error.
	ActionFail Action = iota
	// ActionSkip drops the offending construct and continues.
	ActionSkip
	// ActionFix applies a best-effort repair (pad, close, default) and continues.
	ActionFix
	// ActionWarn records the error as a diagnostic and continues unchanged.
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	default:
		return "warn"
	}
}

// Strict fails on the first error. Used by tests that assert stream validity.
type Strict struct{}

func NewStrict() *Strict { return &Strict{} }

func (*Strict) OnError(error, Location) Action { return ActionFail }

// Lenient repairs whatever it can and accumulates the errors it saw.
// It is the default for analysis passes, where a malformed operator must
// never block read-only extraction.
type Lenient struct {
	Errors []RecoveredError
}

// RecoveredError pairs an error with the location it was recovered at.
type RecoveredError struct {
	Err      error
	Location Location
}

func NewLenient() *Lenient { return &Lenient{} }

func (l *Lenient) OnError(err error, location Location) Action {
	l.Errors = append(l.Errors, RecoveredError{Err: err, Location: location})
	return ActionFix
}
