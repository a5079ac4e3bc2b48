// Package styleintent turns pasted rich-text fragments into the style
// hints an edit can carry. Clipboard HTML is messy and usually carries
// far more markup than intent; only the signals that map onto span
// styling are extracted, everything else is passthrough text.
package styleintent

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Oriol-1/modificador-pdf/editor"
	"github.com/Oriol-1/modificador-pdf/model"
)

// Fragment is the parsed form of one clipboard paste: the plain text to
// insert and the style intent derived from its markup.
type Fragment struct {
	Text   string
	Intent editor.StyleIntent
}

// ParseHTML extracts text and style hints from an HTML fragment. Input
// that does not parse as HTML, or parses to markup-free text, comes back
// as plain text with an empty intent. Nested conflicting hints resolve
// to the outermost occurrence.
func ParseHTML(fragment string) Fragment {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return Fragment{Text: fragment}
	}
	var out Fragment
	var text strings.Builder
	walk(doc, &out.Intent, &text)
	out.Text = strings.TrimSpace(text.String())
	if out.Text == "" && strings.TrimSpace(fragment) != "" {
		out.Text = strings.TrimSpace(fragment)
	}
	return out
}

func walk(n *html.Node, intent *editor.StyleIntent, text *strings.Builder) {
	if n.Type == html.TextNode {
		text.WriteString(n.Data)
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.B, atom.Strong:
			if !intent.Bold.IsKnown() {
				intent.Bold = model.Yes
			}
		case atom.I, atom.Em:
			if !intent.Italic.IsKnown() {
				intent.Italic = model.Yes
			}
		case atom.Span, atom.Font, atom.P, atom.Div:
			applyStyleAttrs(n, intent)
		case atom.Br:
			text.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, intent, text)
	}
}

func applyStyleAttrs(n *html.Node, intent *editor.StyleIntent) {
	for _, a := range n.Attr {
		switch a.Key {
		case "style":
			applyInlineStyle(a.Val, intent)
		case "color":
			if c, ok := normalizeColor(a.Val); ok && intent.Color == "" {
				intent.Color = c
			}
		}
	}
}

// applyInlineStyle reads the handful of CSS declarations the edit model
// understands: font-weight, font-style, font-size (pt only) and color.
func applyInlineStyle(style string, intent *editor.StyleIntent) {
	for _, decl := range strings.Split(style, ";") {
		key, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.ToLower(strings.TrimSpace(val))
		switch key {
		case "font-weight":
			if !intent.Bold.IsKnown() {
				switch {
				case val == "bold" || val == "bolder":
					intent.Bold = model.Yes
				case val == "normal":
					intent.Bold = model.No
				default:
					if w, err := strconv.Atoi(val); err == nil {
						intent.Bold = model.Definite(w >= 600)
					}
				}
			}
		case "font-style":
			if !intent.Italic.IsKnown() {
				intent.Italic = model.Definite(val == "italic" || val == "oblique")
			}
		case "font-size":
			if intent.FontSize == 0 && strings.HasSuffix(val, "pt") {
				if size, err := strconv.ParseFloat(strings.TrimSuffix(val, "pt"), 64); err == nil && size > 0 {
					intent.FontSize = size
				}
			}
		case "color":
			if c, ok := normalizeColor(val); ok && intent.Color == "" {
				intent.Color = c
			}
		}
	}
}

var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#ffffff",
	"red":    "#ff0000",
	"green":  "#008000",
	"blue":   "#0000ff",
	"yellow": "#ffff00",
	"gray":   "#808080",
	"grey":   "#808080",
}

// normalizeColor accepts #rgb, #rrggbb and a few CSS color names,
// returning the canonical #rrggbb the span model uses.
func normalizeColor(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if !strings.HasPrefix(v, "#") {
		return "", false
	}
	hex := v[1:]
	switch len(hex) {
	case 3:
		var b strings.Builder
		b.WriteByte('#')
		for i := 0; i < 3; i++ {
			if !isHexDigit(hex[i]) {
				return "", false
			}
			b.WriteByte(hex[i])
			b.WriteByte(hex[i])
		}
		return b.String(), true
	case 6:
		for i := 0; i < 6; i++ {
			if !isHexDigit(hex[i]) {
				return "", false
			}
		}
		return v, true
	}
	return "", false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
