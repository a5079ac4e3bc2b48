// Package editor rewrites span text under the engine's safety rules: an
// edit is validated against the space it must fit, every adjustment is
// an explicit caller choice, and a commit either lands completely or
// leaves the page exactly as it was.
package editor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Oriol-1/modificador-pdf/model"
)

// State is the lifecycle position of one edit.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCommitting
	StateCommitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	default:
		return "idle"
	}
}

// StyleIntent carries the style hints of an edit. Unknown and zero
// fields inherit from the span being edited.
type StyleIntent struct {
	Bold   model.Tristate
	Italic model.Tristate
	// FontSize of 0 keeps the span's size.
	FontSize float64
	// Color as #rrggbb; empty keeps the span's fill color.
	Color string
	// ForceStyle accepts a style change even when the span's current
	// style could not be determined.
	ForceStyle bool
}

// FitOptionKind names one way of making overflowing text fit.
type FitOptionKind int

const (
	FitReduceTracking FitOptionKind = iota
	FitReduceSize
	FitClipWithEllipsis
)

func (k FitOptionKind) String() string {
	switch k {
	case FitReduceTracking:
		return "reduce-tracking"
	case FitReduceSize:
		return "reduce-size"
	default:
		return "clip-with-ellipsis"
	}
}

// FitOption is one concrete, pre-computed adjustment the caller may pick
// when new text overflows its span. The validator proposes, the caller
// disposes; nothing is ever applied silently.
type FitOption struct {
	Kind FitOptionKind
	// TrackingReductionPct is set for FitReduceTracking.
	TrackingReductionPct float64
	// NewFontSize is set for FitReduceSize.
	NewFontSize float64
	// ClippedText is set for FitClipWithEllipsis.
	ClippedText string
}

// OverflowError reports that new text does not fit and carries the
// viable options, best first. Width always applies; the height pair is
// meaningful when the intent grows the font size.
type OverflowError struct {
	SpanID          model.SpanID
	Required        float64
	Available       float64
	RequiredHeight  float64
	AvailableHeight float64
	Options         []FitOption
}

func (e *OverflowError) Error() string {
	if e.RequiredHeight > e.AvailableHeight {
		return fmt.Sprintf("editor: text for %s needs %.2fx%.2f of %.2fx%.2f available units (%d options)",
			e.SpanID, e.Required, e.RequiredHeight, e.Available, e.AvailableHeight, len(e.Options))
	}
	return fmt.Sprintf("editor: text for %s needs %.2f of %.2f available units (%d options)",
		e.SpanID, e.Required, e.Available, len(e.Options))
}

var (
	// ErrAmbiguousStyle means the intent requests a style change on a
	// span whose current style is unknown; set ForceStyle to proceed.
	ErrAmbiguousStyle = errors.New("editor: span style unknown, set ForceStyle to override")
	// ErrCommitFailed means a commit could not complete; the page is
	// unchanged.
	ErrCommitFailed = errors.New("editor: commit failed, page unchanged")
	// ErrSpanNotFound means the edit target does not exist on the page.
	ErrSpanNotFound = errors.New("editor: span not found")
	// ErrBadState means an operation was called outside its state.
	ErrBadState = errors.New("editor: operation not valid in current state")
	// ErrChoiceRequired means Commit was called on an overflowing edit
	// before a fit option was chosen.
	ErrChoiceRequired = errors.New("editor: overflowing edit needs an explicit fit choice")
)
