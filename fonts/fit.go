package fonts

// Config carries the empirically tuned thresholds of the package: the
// bounds on automatic fit adjustments and the width signal for weight
// inference. The shipped defaults match the values the engine was tuned
// with, but none of them has a documented derivation, so they are fields
// to be calibrated rather than invariants.
type Config struct {
	// MaxTrackingReductionPct caps how much inter-glyph tracking may be
	// tightened, as a percentage of the natural advance. The cap is
	// exclusive: an overflow landing exactly on it is not offered
	// tracking.
	MaxTrackingReductionPct float64
	// MinSizeRatio is the floor on font size reduction, relative to the
	// size the span had before any edit touched it.
	MinSizeRatio float64
	// BoldWidthExcess is the factor over the half-em average advance at
	// which glyph widths read as a bold weight signal.
	BoldWidthExcess float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxTrackingReductionPct: 20.0,
		MinSizeRatio:            0.70,
		BoldWidthExcess:         1.15,
	}
}

// ReduceTracking computes the tracking reduction that absorbs the excess
// of textWidth over boxWidth, expressed as the overflow percentage. ok is
// false when the overflow reaches the cap; tightening tracking that far
// is already visible, so text needing 120% of its box is routed to size
// reduction instead. The cap test compares widths exactly: computing the
// percentage first and comparing that would let rounding slip an
// at-the-cap overflow through.
func (c Config) ReduceTracking(textWidth, boxWidth float64) (pct float64, ok bool) {
	if textWidth <= 0 || boxWidth <= 0 {
		return 0, false
	}
	if textWidth <= boxWidth {
		return 0, true
	}
	if textWidth*100 >= boxWidth*(100+c.MaxTrackingReductionPct) {
		return 0, false
	}
	return (textWidth/boxWidth - 1) * 100, true
}

// ReduceSize computes the font size that shrinks textWidth into boxWidth.
// originalSize is the span's size before any edit history; ok is false
// when the needed size drops below MinSizeRatio of it, so repeated edits
// cannot walk a span below the floor step by step. Width scales linearly
// with size, so the ratio transfers directly.
func (c Config) ReduceSize(textWidth, boxWidth, size, originalSize float64) (newSize float64, ok bool) {
	if textWidth <= 0 || boxWidth <= 0 || size <= 0 {
		return size, false
	}
	newSize = size
	if textWidth > boxWidth {
		newSize = size * boxWidth / textWidth
	}
	if originalSize <= 0 {
		originalSize = size
	}
	return newSize, newSize >= c.MinSizeRatio*originalSize
}
