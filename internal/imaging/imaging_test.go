package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewprint/internal/tspl"
)

func TestToMonochromePacksMSBFirst(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 2))
	for x := 0; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{255})
		img.SetGray(x, 1, color.Gray{255})
	}
	img.SetGray(0, 0, color.Gray{0})
	img.SetGray(9, 1, color.Gray{0})

	data := ToMonochrome(img, 16, 2, DefaultThreshold, false)
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x40}, data)

	inverted := ToMonochrome(img, 16, 2, DefaultThreshold, true)
	assert.Equal(t, []byte{0x7f, 0xff, 0xff, 0xbf}, inverted)

	back := PreviewMonochrome(data, 16, 2).(*image.Gray)
	assert.Equal(t, uint8(0), back.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), back.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0), back.GrayAt(9, 1).Y)
}

func inkRows(img image.Image, from, to, minX int) int {
	n := 0
	b := img.Bounds()
	for y := from; y < to && y < b.Max.Y; y++ {
		for x := minX; x < b.Max.X; x++ {
			if rgbToGray(img.At(x, y)) < DefaultThreshold {
				n++
				break
			}
		}
	}
	return n
}

func TestRenderLabelFollowsLayout(t *testing.T) {
	w, h := tspl.Label40x30.Dots()
	layout := tspl.LayoutName("Hot Latte", w, h)
	require.Len(t, layout.Lines, 1)

	img, err := RenderLabel(tspl.Label40x30, "42", layout)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, w, h), img.Bounds())

	assert.Positive(t, inkRows(img, tspl.Margin, layout.StartOffset, 0), "reference printed")
	assert.Positive(t, inkRows(img, layout.StartOffset, layout.Height(), 0), "name printed")
	assert.Zero(t, inkRows(img, 0, tspl.Margin/2, 0), "top margin clear")
}

func TestRenderLabelUnsetDPI(t *testing.T) {
	custom := tspl.LabelSize{Name: "custom", Width: 40, Height: 30}
	w, h := custom.Dots()
	layout := tspl.LayoutName("Hot Latte", w, h)

	img, err := RenderLabel(custom, "42", layout)
	require.NoError(t, err)
	want, err := RenderLabel(tspl.Label40x30, "42", layout)
	require.NoError(t, err)

	assert.Equal(t, want.Bounds(), img.Bounds())
	assert.Positive(t, inkRows(img, layout.StartOffset, layout.Height(), 0), "name printed")
	assert.Equal(t, want, img)
}

func TestPreviewIsBilevel(t *testing.T) {
	img, layout, err := Preview(tspl.Label50x30, "7", "Iced Caramel Macchiato Grande")
	require.NoError(t, err)
	assert.Equal(t, tspl.FontSmall, layout.Font)

	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	for _, p := range gray.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("pixel value %d is not bilevel", p)
		}
	}
}
