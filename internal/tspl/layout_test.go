package tspl

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleNames = []string{
	"Tea",
	"Hot Latte",
	"Cappuccino x",
	"Flat White Large",
	"Caramel Macchiato!",
	"Iced Vanilla Oat Milk Latte",
	"Pumpkin Spice Chai Latte With Extra Whipped Cream And Cinnamon",
	"Supercalifragilisticexpialidocious",
	"A B C D E F G H I J K L M N O P Q R S T U V W X Y Z",
}

func randomName(r *rand.Rand, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz      "
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	b[0] = 'x'
	b[n-1] = 'y'
	return string(b)
}

func namesOfLength(t *testing.T, min, max int) []string {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	var names []string
	for n := min; n <= max; n++ {
		for i := 0; i < 20; i++ {
			name := randomName(r, n)
			// collapse runs of spaces so the sanitized length stays n
			name = strings.Join(strings.Fields(name), " ")
			if len(name) == n {
				names = append(names, name)
			}
		}
		names = append(names, strings.Repeat("w", n))
	}
	return names
}

func TestLayoutShortNames(t *testing.T) {
	w, h := Label40x30.Dots()
	for _, name := range namesOfLength(t, 1, 12) {
		l := LayoutName(name, w, h)
		assert.Equal(t, FontLarge, l.Font, name)
		assert.LessOrEqual(t, len(l.Lines), 2, name)
	}
}

func TestLayoutMediumNames(t *testing.T) {
	w, h := Label40x30.Dots()
	for _, name := range namesOfLength(t, 13, 18) {
		l := LayoutName(name, w, h)
		assert.Equal(t, FontMedium, l.Font, name)
		assert.LessOrEqual(t, len(l.Lines), 2, name)
	}
}

func TestLayoutLongNames(t *testing.T) {
	for _, size := range AllSizes {
		w, h := size.Dots()
		for _, name := range namesOfLength(t, 19, 80) {
			l := LayoutName(name, w, h)
			assert.Equal(t, FontSmall, l.Font, name)
			assert.LessOrEqual(t, len(l.Lines), 3, name)
			for _, line := range l.Lines {
				assert.LessOrEqual(t, len(line), l.Budget, line)
			}
		}
	}
}

func TestLayoutFitsPrintableHeight(t *testing.T) {
	for _, size := range AllSizes {
		w, h := size.Dots()
		for _, name := range sampleNames {
			l := LayoutName(name, w, h)
			assert.LessOrEqual(t, l.Height(), h, "%s on %s", name, size.Name)
			for _, line := range l.Lines {
				assert.LessOrEqual(t, len(line), l.Budget)
			}
		}
	}
}

func TestLayoutDropsOverflowLines(t *testing.T) {
	w, h := Label40x30.Dots()
	l := LayoutName("one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen", w, h)
	require.Len(t, l.Lines, 3)
	assert.Equal(t, "one two three four five", l.Lines[0])
}

func TestLayoutSmallStockLimitsLines(t *testing.T) {
	w, _ := Label40x30.Dots()
	// only room for one large line below the reference
	l := LayoutName("Mocha Latte", w, 100)
	assert.LessOrEqual(t, l.Height(), 100)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{"Hot", "Latte"}, Wrap("Hot Latte", 6))
	assert.Equal(t, []string{"Hot Latte"}, Wrap("  Hot   Latte ", 9))
	assert.Equal(t, []string{"Supe", "cup"}, Wrap("Supercalifragilistic cup", 4))
	assert.Nil(t, Wrap("", 10))
	assert.Nil(t, Wrap("anything", 0))
}

func TestWrapIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		text := randomName(r, 5+r.Intn(60))
		for _, budget := range []int{4, 8, 12, 18, 24} {
			first := Wrap(text, budget)
			again := Wrap(strings.Join(first, " "), budget)
			assert.Equal(t, first, again, "text %q budget %d", text, budget)
		}
	}
	for _, name := range sampleNames {
		first := Wrap(name, 12)
		assert.Equal(t, first, Wrap(strings.Join(first, "\n"), 12))
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Cafe Creme", Sanitize("Cafe\tCreme"))
	assert.Equal(t, "Caf Crme", Sanitize("Café Crème"))
	assert.Equal(t, "Say hi", Sanitize(`Say "hi"`))
	assert.Equal(t, "", Sanitize("\x00\x01☕"))
}
