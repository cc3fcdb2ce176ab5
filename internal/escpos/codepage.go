package escpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// CodePage pairs a single-byte charset with the ESC t table number
// most thermal printers use for it.
type CodePage struct {
	Name  string
	Table byte
	cm    *charmap.Charmap
}

var codePages = map[string]CodePage{
	"cp437":  {Name: "cp437", Table: 0, cm: charmap.CodePage437},
	"cp850":  {Name: "cp850", Table: 2, cm: charmap.CodePage850},
	"cp1252": {Name: "cp1252", Table: 16, cm: charmap.Windows1252},
	"cp866":  {Name: "cp866", Table: 17, cm: charmap.CodePage866},
	"cp852":  {Name: "cp852", Table: 18, cm: charmap.CodePage852},
	"cp858":  {Name: "cp858", Table: 19, cm: charmap.CodePage858},
}

// DefaultCodePage is PC437, the power-on default of most printers.
var DefaultCodePage = codePages["cp437"]

// LookupCodePage resolves a code page by name, e.g. "cp858".
func LookupCodePage(name string) (CodePage, error) {
	cp, ok := codePages[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return CodePage{}, fmt.Errorf("unknown code page %q", name)
	}
	return cp, nil
}

func (cp CodePage) charmap() *charmap.Charmap {
	if cp.cm == nil {
		return charmap.CodePage437
	}
	return cp.cm
}

// Sanitize drops control characters and runes the code page cannot
// represent. Tabs and newlines become spaces. It never fails.
func (cp CodePage) Sanitize(s string) string {
	cm := cp.charmap()
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7F:
		case r < 0x80:
			b.WriteRune(r)
		case r == utf8.RuneError:
		default:
			if _, ok := cm.EncodeRune(r); ok {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Encode converts sanitized text into printer bytes, one byte per rune.
func (cp CodePage) Encode(s string) []byte {
	cm := cp.charmap()
	out := make([]byte, 0, len(s))
	for _, r := range cp.Sanitize(s) {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if b, ok := cm.EncodeRune(r); ok {
			out = append(out, b)
		}
	}
	return out
}
