package model

import "time"

// EditStrategy is the rewrite mechanism the editor committed with.
type EditStrategy int

const (
	// StrategyOverlay paints a replacement region above the original
	// operators without touching them.
	StrategyOverlay EditStrategy = iota
	// StrategySubstitution rewrites the underlying show operator in place.
	StrategySubstitution
)

func (s EditStrategy) String() string {
	if s == StrategySubstitution {
		return "substitution"
	}
	return "overlay"
}

// BoldStrategy records how a bold request was honored.
type BoldStrategy int

const (
	BoldNone BoldStrategy = iota
	BoldExact
	BoldApproximate
	BoldWarning
)

func (s BoldStrategy) String() string {
	switch s {
	case BoldExact:
		return "exact"
	case BoldApproximate:
		return "approximate"
	case BoldWarning:
		return "warning"
	default:
		return "none"
	}
}

// ChangeRecord is the append-only log entry emitted once per committed
// edit. It is consumed by the external change-report collaborator.
type ChangeRecord struct {
	ID        string    `json:"id"`
	PageIndex int       `json:"pageIndex"`
	SpanID    SpanID    `json:"spanId"`
	CreatedAt time.Time `json:"createdAt"`

	OldText string `json:"oldText"`
	NewText string `json:"newText"`

	FontUsed     string       `json:"fontUsed"`
	WasFallback  bool         `json:"wasFallback"`
	Strategy     EditStrategy `json:"strategy"`
	BoldStrategy BoldStrategy `json:"boldStrategy"`

	// Adjustment percentages actually applied; zero when untouched.
	TrackingAdjustmentPct float64 `json:"trackingAdjustmentPct,omitempty"`
	SizeAdjustmentPct     float64 `json:"sizeAdjustmentPct,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}
