package tspl

import (
	"strings"
)

// Font is one of the printer's resident bitmap fonts.
type Font struct {
	Code       string // TSPL font name
	CharWidth  int    // dots
	CharHeight int    // dots
	LineGap    int    // dots between lines
	MaxLines   int
}

// LineHeight is the vertical advance per wrapped line.
func (f Font) LineHeight() int {
	return f.CharHeight + f.LineGap
}

// Resident fonts used for item names, largest first.
var (
	FontLarge  = Font{Code: "4", CharWidth: 24, CharHeight: 32, LineGap: 8, MaxLines: 2}
	FontMedium = Font{Code: "3", CharWidth: 16, CharHeight: 24, LineGap: 8, MaxLines: 2}
	FontSmall  = Font{Code: "2", CharWidth: 12, CharHeight: 20, LineGap: 6, MaxLines: 3}
)

// The order reference always prints in the small font at the top.
var referenceFont = FontSmall

const (
	// Margin is kept clear on every edge of the label.
	Margin = 16

	shortNameMax  = 12
	mediumNameMax = 18
)

// Layout is the placement of an item name on a label.
type Layout struct {
	Font        Font
	Budget      int // characters per line
	Lines       []string
	LineHeight  int
	StartOffset int // y of the first name line, in dots
}

// Height is the vertical extent from the top edge to the bottom of the last line.
func (l Layout) Height() int {
	return l.StartOffset + len(l.Lines)*l.LineHeight
}

// FontForName picks the font tier from the sanitized name length.
func FontForName(name string) Font {
	n := len(name)
	switch {
	case n <= shortNameMax:
		return FontLarge
	case n <= mediumNameMax:
		return FontMedium
	default:
		return FontSmall
	}
}

// LayoutName fits an item name into a label of widthDots x heightDots.
// Lines past the font's line budget, or past the printable height, are dropped.
func LayoutName(itemName string, widthDots, heightDots int) Layout {
	name := strings.Join(strings.Fields(Sanitize(itemName)), " ")
	font := FontForName(name)

	budget := (widthDots - 2*Margin) / font.CharWidth
	start := Margin + referenceFont.CharHeight + referenceFont.LineGap*2

	maxLines := font.MaxLines
	if fit := (heightDots - start) / font.LineHeight(); fit < maxLines {
		maxLines = fit
	}
	if maxLines < 0 {
		maxLines = 0
	}

	lines := Wrap(name, budget)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	return Layout{
		Font:        font,
		Budget:      budget,
		Lines:       lines,
		LineHeight:  font.LineHeight(),
		StartOffset: start,
	}
}

// Wrap breaks text into lines of at most budget characters, greedily.
// A word longer than the budget is cut to the budget.
func Wrap(text string, budget int) []string {
	if budget < 1 {
		return nil
	}

	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		if len(word) > budget {
			word = word[:budget]
		}
		if current == "" {
			current = word
			continue
		}
		if len(current)+1+len(word) > budget {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// Sanitize keeps printable ASCII, which every resident font carries.
// Double quotes are dropped since they delimit TEXT fields.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r > 0x7e || r == '"' {
			if r == '\t' || r == '\n' || r == '\r' {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
