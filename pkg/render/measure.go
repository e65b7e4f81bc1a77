package render

import (
	"unicode/utf8"

	"github.com/aretw0/tapestry/pkg/domain"
)

// TextMeasurer estimates label boxes for a fixed-pitch font.
type TextMeasurer struct {
	CharWidth  float64
	LineHeight float64
}

// DefaultMeasurer matches the 12px monospace label used by the SVG projection.
var DefaultMeasurer = TextMeasurer{CharWidth: 7.2, LineHeight: 14}

// Measure returns the label box padded the way blocks are drawn:
// 30 units of horizontal and 5 units of vertical slack.
func (m TextMeasurer) Measure(label string) domain.Size {
	return domain.Size{
		Width:  float64(utf8.RuneCountInString(label))*m.CharWidth + 30,
		Height: m.LineHeight + 5,
	}
}
