package tspl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewprint/internal/order"
)

func TestDots(t *testing.T) {
	w, h := Label40x30.Dots()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)

	unset := LabelSize{Name: "custom", Width: 40, Height: 30}
	assert.Equal(t, DefaultDPI, unset.Resolution())
	uw, uh := unset.Dots()
	assert.Equal(t, w, uw)
	assert.Equal(t, h, uh)
}

func TestCommandBuilder(t *testing.T) {
	got := New().Size(40, 30).Gap(2, 0).Direction(1, 0).Density(20).CLS().
		Text(16, 16, "2", "#7").Print(2).String()

	want := "SIZE 40.0 mm,30.0 mm\r\n" +
		"GAP 2.0 mm,0.0 mm\r\n" +
		"DIRECTION 1,0\r\n" +
		"DENSITY 15\r\n" +
		"CLS\r\n" +
		"TEXT 16,16,\"2\",0,1,1,\"#7\"\r\n" +
		"PRINT 2\r\n"
	assert.Equal(t, want, got)
}

func TestBuildLabelHotLatte(t *testing.T) {
	data, layout, err := BuildLabel(DefaultStock, "42", "Hot Latte", 1)
	require.NoError(t, err)

	out := string(data)
	for _, prefix := range []string{"SIZE ", "GAP ", "DIRECTION ", "CLS\r\n"} {
		assert.Contains(t, out, prefix)
	}
	assert.Contains(t, out, `"#42"`)
	assert.Equal(t, 1, countTextWith(out, "Hot Latte"))
	assert.Equal(t, FontLarge, layout.Font)
	assert.Equal(t, []string{"Hot Latte"}, layout.Lines)
	assert.True(t, strings.HasSuffix(out, "PRINT 1\r\n"))
}

func TestBuildLabelCommandOrder(t *testing.T) {
	data, _, err := BuildLabel(DefaultStock, "#5", "Iced Caramel Macchiato With Oat Milk", 2)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.True(t, strings.HasPrefix(lines[0], "SIZE"))
	assert.True(t, strings.HasPrefix(lines[1], "GAP"))
	assert.True(t, strings.HasPrefix(lines[2], "DIRECTION"))
	assert.Equal(t, "CLS", lines[3])
	assert.Equal(t, `TEXT 16,16,"2",0,1,1,"#5"`, lines[4])
	assert.Equal(t, "PRINT 2", lines[len(lines)-1])

	// name lines follow at increasing offsets
	prevY := 16
	for _, l := range lines[5 : len(lines)-1] {
		var x, y int
		_, err := fmt.Sscanf(l, "TEXT %d,%d,", &x, &y)
		require.NoError(t, err)
		assert.Greater(t, y, prevY)
		prevY = y
	}
}

func TestBuildLabelEmptyName(t *testing.T) {
	data, layout, err := BuildLabel(DefaultStock, "9", "☕☕", 1)
	require.NoError(t, err)
	assert.Empty(t, layout.Lines)
	assert.Equal(t, 1, strings.Count(string(data), "TEXT "))
	assert.Contains(t, string(data), `"#9"`)
}

func TestBuildLabelRejectsQuantity(t *testing.T) {
	_, _, err := BuildLabel(DefaultStock, "1", "Tea", 0)
	require.ErrorIs(t, err, order.ErrInvalidJob)
}

func TestReferenceText(t *testing.T) {
	assert.Equal(t, "#42", ReferenceText("42"))
	assert.Equal(t, "#42", ReferenceText("#42"))
	assert.Equal(t, "", ReferenceText("  "))
}

func countTextWith(stream, s string) int {
	n := 0
	for _, l := range strings.Split(stream, "\r\n") {
		if strings.HasPrefix(l, "TEXT ") && strings.Contains(l, s) {
			n++
		}
	}
	return n
}
