package model

import "strings"

// RenderMode matches the PDF text rendering modes set via the Tr operator.
type RenderMode int

const (
	RenderFill RenderMode = iota
	RenderStroke
	RenderFillStroke
	RenderInvisible
	RenderFillClip
	RenderStrokeClip
	RenderFillStrokeClip
	RenderClip
)

func (m RenderMode) String() string {
	switch m {
	case RenderFill:
		return "fill"
	case RenderStroke:
		return "stroke"
	case RenderFillStroke:
		return "fill-stroke"
	case RenderInvisible:
		return "invisible"
	case RenderFillClip:
		return "fill-clip"
	case RenderStrokeClip:
		return "stroke-clip"
	case RenderFillStrokeClip:
		return "fill-stroke-clip"
	case RenderClip:
		return "clip"
	default:
		return "unknown"
	}
}

// Visible reports whether glyphs painted in this mode produce marks.
func (m RenderMode) Visible() bool { return m != RenderInvisible && m != RenderClip }

// EmbeddingStatus describes how a font travels with the document.
type EmbeddingStatus int

const (
	EmbeddingUnknown EmbeddingStatus = iota
	NotEmbedded
	FullyEmbedded
	SubsetEmbedded
)

func (s EmbeddingStatus) String() string {
	switch s {
	case NotEmbedded:
		return "not-embedded"
	case FullyEmbedded:
		return "embedded"
	case SubsetEmbedded:
		return "subset"
	default:
		return "unknown"
	}
}

// Font descriptor flag bits (PDF 32000-1, table 123). Only the bits the
// engine inspects are named.
const (
	FontFlagFixedPitch uint32 = 1 << 0
	FontFlagSerif      uint32 = 1 << 1
	FontFlagItalic     uint32 = 1 << 6
	FontFlagForceBold  uint32 = 1 << 18
)

// FontInfo is the font-dictionary metadata supplied by the document-access
// collaborator alongside the raw content stream. The parser uses the width
// table to advance the pen; the resolver uses flags and the embedded
// program for style inference and measurement.
type FontInfo struct {
	// Name is the resource name the content stream selects the font by (Tf).
	Name string `json:"name"`
	// BaseFont is the declared PostScript name, possibly subset-tagged.
	BaseFont string `json:"baseFont"`
	Subtype  string `json:"subtype,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	// Flags are the descriptor flag bits, zero when no descriptor was present.
	Flags uint32 `json:"flags,omitempty"`
	// Widths maps character codes to advances in 1000-unit glyph space.
	Widths map[byte]float64 `json:"widths,omitempty"`
	// DefaultWidth is used for codes missing from Widths.
	DefaultWidth float64         `json:"defaultWidth,omitempty"`
	Embedding    EmbeddingStatus `json:"embedding"`
	// Glyphs lists the character codes covered by a subset-embedded
	// program, when the collaborator extracted that information.
	Glyphs map[byte]bool `json:"-"`
	// Program is the raw embedded font file, when available. Consumed by
	// the shaping measurement backend; nil is always legal.
	Program []byte `json:"-"`
}

// GlyphWidth returns the advance for code in 1000-unit glyph space.
func (f *FontInfo) GlyphWidth(code byte) float64 {
	if f != nil && f.Widths != nil {
		if w, ok := f.Widths[code]; ok {
			return w
		}
	}
	if f != nil && f.DefaultWidth > 0 {
		return f.DefaultWidth
	}
	// Missing width tables are common in damaged files; half an em keeps
	// geometry plausible.
	return 500
}

// HasGlyph reports whether a subset-embedded program covers code. When no
// coverage information exists the answer is pessimistic.
func (f *FontInfo) HasGlyph(code byte) bool {
	if f == nil || f.Glyphs == nil {
		return false
	}
	return f.Glyphs[code]
}

// ForceBold reports the descriptor's explicit bold bit as a Tristate:
// Unknown when no descriptor flags were supplied at all.
func (f *FontInfo) ForceBold() Tristate {
	if f == nil || f.Flags == 0 {
		return Unknown
	}
	return Definite(f.Flags&FontFlagForceBold != 0)
}

// IsSubsetTagged reports whether name carries the ABCDEF+ subset prefix.
func IsSubsetTagged(name string) bool {
	if len(name) < 8 || name[6] != '+' {
		return false
	}
	for i := 0; i < 6; i++ {
		if name[i] < 'A' || name[i] > 'Z' {
			return false
		}
	}
	return true
}

// StripSubsetTag returns the font name without its subset prefix.
func StripSubsetTag(name string) string {
	if IsSubsetTagged(name) {
		return name[7:]
	}
	return name
}

// NormalizeFontName lowercases and strips the subset tag for heuristic
// matching.
func NormalizeFontName(name string) string {
	return strings.ToLower(StripSubsetTag(name))
}
