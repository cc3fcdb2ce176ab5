package imaging

import (
	"image"
	"image/color"
)

// DefaultThreshold splits anti-aliased glyph edges the way a direct
// thermal head does.
const DefaultThreshold = 128

// ToMonochrome converts an image to a 1-bit bitmap, MSB first, one set
// bit per burned dot. Width must be divisible by 8.
func ToMonochrome(img image.Image, width, height int, threshold uint8, invert bool) []byte {
	resized := resizeToFit(img, width, height)

	// Width in bytes (8 pixels per byte)
	widthBytes := width / 8
	data := make([]byte, widthBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gray uint8
			if x < resized.Bounds().Dx() && y < resized.Bounds().Dy() {
				c := resized.At(resized.Bounds().Min.X+x, resized.Bounds().Min.Y+y)
				gray = rgbToGray(c)
			} else {
				gray = 255 // white for out of bounds
			}

			var bit uint8
			if gray < threshold {
				bit = 1 // dark pixel
			}
			if invert {
				bit = 1 - bit
			}

			byteIdx := y*widthBytes + x/8
			bitIdx := 7 - (x % 8)
			data[byteIdx] |= bit << bitIdx
		}
	}

	return data
}

// rgbToGray converts a color to grayscale value
func rgbToGray(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	// Standard luminance formula, values are 16-bit so divide by 256
	gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256
	return uint8(gray)
}

// resizeToFit scales image to fit within bounds while maintaining aspect ratio
func resizeToFit(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW == maxW && srcH == maxH {
		return img
	}

	scaleW := float64(maxW) / float64(srcW)
	scaleH := float64(maxH) / float64(srcH)
	scale := scaleW
	if scaleH < scaleW {
		scale = scaleH
	}

	newW := int(float64(srcW) * scale)
	newH := int(float64(srcH) * scale)

	// Nearest neighbour is enough for a 1-bit preview
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))

	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			srcX := int(float64(x) / scale)
			srcY := int(float64(y) / scale)
			if srcX >= srcW {
				srcX = srcW - 1
			}
			if srcY >= srcH {
				srcY = srcH - 1
			}
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}

	return dst
}

// PreviewMonochrome creates a viewable image from monochrome bitmap data
func PreviewMonochrome(data []byte, width, height int) image.Image {
	widthBytes := width / 8
	img := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			byteIdx := y*widthBytes + x/8
			bitIdx := 7 - (x % 8)
			bit := (data[byteIdx] >> bitIdx) & 1

			if bit == 1 {
				img.SetGray(x, y, color.Gray{0})
			} else {
				img.SetGray(x, y, color.Gray{255})
			}
		}
	}

	return img
}
