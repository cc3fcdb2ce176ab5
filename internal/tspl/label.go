package tspl

import (
	"fmt"
	"strings"

	"brewprint/internal/order"
)

// Stock describes the loaded label roll.
type Stock struct {
	Size    LabelSize
	Gap     float64 // mm
	Density int     // 0 keeps the printer setting
}

// DefaultStock is a 40x30mm roll with a 2mm gap.
var DefaultStock = Stock{Size: Label40x30, Gap: 2.0}

// BuildLabel creates the command stream for one item label. quantity
// becomes the copy count so every cup gets its own label.
func BuildLabel(stock Stock, orderRef, itemName string, quantity int) ([]byte, Layout, error) {
	if quantity < 1 {
		return nil, Layout{}, fmt.Errorf("%w: label quantity %d", order.ErrInvalidJob, quantity)
	}

	w, h := stock.Size.Dots()
	layout := LayoutName(itemName, w, h)

	cmd := New()
	cmd.Size(stock.Size.Width, stock.Size.Height).
		Gap(stock.Gap, 0).
		Direction(1, 0)
	if stock.Density > 0 {
		cmd.Density(stock.Density)
	}
	cmd.CLS().
		Text(Margin, Margin, referenceFont.Code, ReferenceText(orderRef))

	y := layout.StartOffset
	for _, line := range layout.Lines {
		cmd.Text(Margin, y, layout.Font.Code, line)
		y += layout.LineHeight
	}
	cmd.Print(quantity)

	return cmd.Bytes(), layout, nil
}

// ReferenceText formats the order reference as printed on the label.
func ReferenceText(orderRef string) string {
	ref := strings.TrimSpace(Sanitize(orderRef))
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ref
	}
	return "#" + ref
}
