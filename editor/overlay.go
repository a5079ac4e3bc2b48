package editor

import (
	"github.com/Oriol-1/modificador-pdf/coords"
	"github.com/Oriol-1/modificador-pdf/model"
)

// OverlayLayer is one painted replacement region. Overlay edits never
// touch the original operators; they paint above them, and the z order
// records who covers whom.
type OverlayLayer struct {
	Z      int
	SpanID model.SpanID
	Region coords.Rect
}

// overlayStack tracks the overlay layers of one page in paint order.
type overlayStack struct {
	layers []OverlayLayer
	nextZ  int
}

// push adds a region above everything painted so far and returns the
// assigned layer.
func (o *overlayStack) push(id model.SpanID, region coords.Rect) OverlayLayer {
	l := OverlayLayer{Z: o.nextZ, SpanID: id, Region: region}
	o.nextZ++
	o.layers = append(o.layers, l)
	return l
}

// pop removes the most recent layer. Used by commit rollback.
func (o *overlayStack) pop() {
	if n := len(o.layers); n > 0 {
		o.layers = o.layers[:n-1]
	}
}

// covering returns the layers whose region intersects r, bottom first.
func (o *overlayStack) covering(r coords.Rect) []OverlayLayer {
	var out []OverlayLayer
	for _, l := range o.layers {
		if l.Region.Intersects(r) {
			out = append(out, l)
		}
	}
	return out
}
