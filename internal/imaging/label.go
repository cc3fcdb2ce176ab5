package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"brewprint/internal/tspl"
)

var monoFont *truetype.Font

func init() {
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		panic(err)
	}
	monoFont = f
}

// RenderLabel draws a label the way the printer lays it out: the order
// reference in the small font at the top margin, then each name line of
// layout at its offset. Resident bitmap fonts are stood in for by a
// monospace face scaled to the same cell height.
func RenderLabel(size tspl.LabelSize, orderRef string, layout tspl.Layout) (image.Image, error) {
	w, h := size.Dots()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	dpi := float64(size.Resolution())
	c := freetype.NewContext()
	c.SetDPI(dpi)
	c.SetFont(monoFont)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(&image.Uniform{color.Black})
	c.SetHinting(font.HintingFull)

	drawLine := func(text string, f tspl.Font, top int) error {
		points := float64(f.CharHeight) * 72 / dpi
		c.SetFontSize(points)
		face := truetype.NewFace(monoFont, &truetype.Options{Size: points, DPI: dpi})
		ascent := face.Metrics().Ascent.Ceil()
		_, err := c.DrawString(text, freetype.Pt(tspl.Margin, top+ascent))
		return err
	}

	if err := drawLine(tspl.ReferenceText(orderRef), tspl.FontSmall, tspl.Margin); err != nil {
		return nil, err
	}
	y := layout.StartOffset
	for _, line := range layout.Lines {
		if err := drawLine(line, layout.Font, y); err != nil {
			return nil, err
		}
		y += layout.LineHeight
	}
	return img, nil
}

// Preview renders a label and passes it through the same 1-bit
// threshold as the print head, for on-screen display.
func Preview(size tspl.LabelSize, orderRef, itemName string) (image.Image, tspl.Layout, error) {
	w, h := size.Dots()
	layout := tspl.LayoutName(itemName, w, h)
	img, err := RenderLabel(size, orderRef, layout)
	if err != nil {
		return nil, layout, err
	}
	// bitmap rows are whole bytes
	bw := (w + 7) / 8 * 8
	mono := ToMonochrome(img, bw, h, DefaultThreshold, false)
	return PreviewMonochrome(mono, bw, h), layout, nil
}
