package contentstream

import (
	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/model"
)

// TextState carries the parameters set by the Tc Tw Tz TL Tf Tr Ts
// operators plus the two text matrices. It is a value type: saving state
// is a struct copy, never a pointer share.
type TextState struct {
	CharSpacing     float64 // Tc, points
	WordSpacing     float64 // Tw, points
	HorizontalScale float64 // Tz, percent, 100 = normal
	Leading         float64 // TL, points
	Rise            float64 // Ts, points
	RenderMode      model.RenderMode

	FontName string
	FontSize float64
	Font     *model.FontInfo

	TextMatrix     coords.Matrix // Tm
	TextLineMatrix coords.Matrix // Tlm
}

// NewTextState returns the operator defaults defined by PDF 32000-1 §9.3.
func NewTextState() TextState {
	return TextState{
		HorizontalScale: 100,
		TextMatrix:      coords.Identity(),
		TextLineMatrix:  coords.Identity(),
	}
}

// BeginText resets the matrices at a BT bracket. The spacing parameters
// survive across text objects; only the matrices reset.
func (ts *TextState) BeginText() {
	ts.TextMatrix = coords.Identity()
	ts.TextLineMatrix = coords.Identity()
}

// NextLine moves the line matrix by (tx, ty) and restarts the text matrix
// from it (Td).
func (ts *TextState) NextLine(tx, ty float64) {
	ts.TextLineMatrix = coords.Translate(tx, ty).Mul(ts.TextLineMatrix)
	ts.TextMatrix = ts.TextLineMatrix
}

// GraphicsState is the subset of the PDF graphics state the text engine
// tracks: the CTM, the paint colors, and the text parameters (which PDF
// makes part of graphics state, so q/Q save and restore them too).
type GraphicsState struct {
	CTM         coords.Matrix
	FillColor   string
	StrokeColor string
	Text        TextState
}

// NewGraphicsState returns the page-start defaults.
func NewGraphicsState() GraphicsState {
	return GraphicsState{
		CTM:         coords.Identity(),
		FillColor:   "#000000",
		StrokeColor: "#000000",
		Text:        NewTextState(),
	}
}

// stateStack is the explicit arena of state snapshots behind q/Q. Values
// are copied on push and pop; nothing on the stack aliases live state.
type stateStack struct {
	states []GraphicsState
}

func (s *stateStack) push(gs GraphicsState) {
	s.states = append(s.states, gs)
}

// pop returns the saved state and whether one existed.
func (s *stateStack) pop() (GraphicsState, bool) {
	n := len(s.states)
	if n == 0 {
		return GraphicsState{}, false
	}
	gs := s.states[n-1]
	s.states = s.states[:n-1]
	return gs, true
}

func (s *stateStack) depth() int { return len(s.states) }
