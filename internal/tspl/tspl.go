package tspl

import (
	"fmt"
	"math"
	"strings"
)

// LabelSize represents a supported label stock
type LabelSize struct {
	Name   string
	Width  float64 // mm
	Height float64 // mm
	DPI    int
}

// Common cup and bag label stocks
var (
	Label40x30 = LabelSize{"40x30mm", 40.0, 30.0, 203}
	Label50x30 = LabelSize{"50x30mm", 50.0, 30.0, 203}
	Label58x40 = LabelSize{"58x40mm", 58.0, 40.0, 203}
	Label30x20 = LabelSize{"30x20mm", 30.0, 20.0, 203}
)

var AllSizes = []LabelSize{Label40x30, Label50x30, Label58x40, Label30x20}

// SizeByName looks up a stock from AllSizes.
func SizeByName(name string) (LabelSize, bool) {
	for _, s := range AllSizes {
		if s.Name == name {
			return s, true
		}
	}
	return LabelSize{}, false
}

// DefaultDPI is the head resolution of common 2 inch label printers.
const DefaultDPI = 203

// Resolution is the head resolution in dots per inch; an unset DPI
// means DefaultDPI.
func (s LabelSize) Resolution() int {
	if s.DPI <= 0 {
		return DefaultDPI
	}
	return s.DPI
}

// Dots converts the physical size into printer dots.
func (s LabelSize) Dots() (width, height int) {
	perMM := float64(s.Resolution()) / 25.4
	return int(math.Round(s.Width * perMM)), int(math.Round(s.Height * perMM))
}

// Command builds TSPL2 commands
type Command struct {
	buf strings.Builder
}

func New() *Command {
	return &Command{}
}

// Size sets label dimensions
func (c *Command) Size(width, height float64) *Command {
	fmt.Fprintf(&c.buf, "SIZE %.1f mm,%.1f mm\r\n", width, height)
	return c
}

// Gap sets gap between labels
func (c *Command) Gap(gap, offset float64) *Command {
	fmt.Fprintf(&c.buf, "GAP %.1f mm,%.1f mm\r\n", gap, offset)
	return c
}

// Direction sets print direction (0 or 1)
func (c *Command) Direction(dir, mirror int) *Command {
	fmt.Fprintf(&c.buf, "DIRECTION %d,%d\r\n", dir, mirror)
	return c
}

// Density sets print darkness (0-15)
func (c *Command) Density(level int) *Command {
	if level < 0 {
		level = 0
	}
	if level > 15 {
		level = 15
	}
	fmt.Fprintf(&c.buf, "DENSITY %d\r\n", level)
	return c
}

// CLS clears the image buffer
func (c *Command) CLS() *Command {
	c.buf.WriteString("CLS\r\n")
	return c
}

// Text places a string using one of the printer's resident fonts.
// content must already be sanitized; double quotes terminate the field.
func (c *Command) Text(x, y int, font string, content string) *Command {
	fmt.Fprintf(&c.buf, "TEXT %d,%d,\"%s\",0,1,1,\"%s\"\r\n", x, y, font, content)
	return c
}

// Print prints n copies
func (c *Command) Print(copies int) *Command {
	fmt.Fprintf(&c.buf, "PRINT %d\r\n", copies)
	return c
}

// Bytes returns the raw command bytes to send to printer
func (c *Command) Bytes() []byte {
	return []byte(c.buf.String())
}

// String returns the command as a string (for debugging)
func (c *Command) String() string {
	return c.buf.String()
}
