package escpos

const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

type Align byte

const (
	AlignLeft   Align = 0x00
	AlignCenter Align = 0x01
	AlignRight  Align = 0x02
)

func Init() []byte {
	return []byte{ESC, 0x40}
}

func Bold(on bool) []byte {
	if on {
		return []byte{ESC, 0x45, 0x01}
	}
	return []byte{ESC, 0x45, 0x00}
}

func SetAlign(a Align) []byte {
	return []byte{ESC, 0x61, byte(a)}
}

func DoubleHeight(on bool) []byte {
	if on {
		return []byte{ESC, 0x21, 0x10}
	}
	return []byte{ESC, 0x21, 0x00}
}

// SelectCodeTable picks the character table used for bytes >= 0x80.
func SelectCodeTable(n byte) []byte {
	return []byte{ESC, 0x74, n}
}

// FeedLines prints the buffer and feeds n lines.
func FeedLines(n byte) []byte {
	return []byte{ESC, 0x64, n}
}

// Cut performs a full cut.
func Cut() []byte {
	return []byte{GS, 0x56, 0x00}
}
