package element

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// MinFontSize is the smallest font size a text box may hold.
const MinFontSize = 1.0

// face is the reference face text is measured with; sizes scale linearly from its height.
var face = basicfont.Face7x13

// Measure returns the width and height of content rendered at fontSize.
// Lines are split on '\n'; an empty text still occupies one line.
func Measure(content string, fontSize float64) (float64, float64) {
	scale := fontSize / float64(face.Height)
	lines := strings.Split(content, "\n")

	var width float64

	for _, line := range lines {
		adv := font.MeasureString(face, line)
		width = math.Max(width, float64(adv)/64*scale)
	}

	return width, float64(len(lines)) * float64(face.Height) * scale
}
