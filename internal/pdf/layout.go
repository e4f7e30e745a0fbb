package pdf

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// lineTolerance is how far apart, in points, two baselines may be and
	// still count as one line.
	lineTolerance = 2.0

	// wordGapRatio of the font size is the horizontal gap read as a space.
	wordGapRatio = 0.25
)

type textLine struct {
	y      float64
	glyphs []pdf.Text
}

// layoutText rebuilds the reading order of a page from its positioned
// glyphs: one line per baseline, top to bottom, glyphs left to right. Runs
// separated by a visible gap are joined with a space.
func layoutText(glyphs []pdf.Text) string {
	var lines []*textLine
	for _, g := range glyphs {
		if g.S == "" || strings.IndexFunc(g.S, unicode.IsControl) >= 0 {
			continue
		}

		var line *textLine
		for _, l := range lines {
			if math.Abs(l.y-g.Y) < lineTolerance {
				line = l
				break
			}
		}
		if line == nil {
			line = &textLine{y: g.Y}
			lines = append(lines, line)
		}
		line.glyphs = append(line.glyphs, g)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var b strings.Builder
	for _, l := range lines {
		text := strings.TrimSpace(l.text())
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (l *textLine) text() string {
	// Glyphs of a font without width metrics share the X of their run, so
	// the sort must keep content stream order for ties.
	sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })

	var row strings.Builder
	for i, g := range l.glyphs {
		if i > 0 {
			prev := l.glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > wordGap(prev) && prev.S != " " && g.S != " " {
				row.WriteByte(' ')
			}
		}
		row.WriteString(g.S)
	}
	return row.String()
}

func wordGap(t pdf.Text) float64 {
	return math.Max(t.FontSize*wordGapRatio, 1)
}
