// internal/sim/render.go
//
// Turning a grid into text.
//
// Render maps each cell to a character by its level relative to Max.
// RenderCells and RenderHTML go through a shared lookup table of
// max(2, len(chars), len(colors)) levels so characters and colours stay in
// step even when the two lists differ in length.

package sim

import (
	"html"
	"math"
	"strings"
)

// Palette is an ordered ramp from cold to hot.
type Palette struct {
	Chars  []rune
	Colors []string // "#rrggbb"; optional
}

// Stock palettes.
var (
	FirePalette = Palette{
		Chars:  []rune(" .:-=+*#%@"),
		Colors: FireColors,
	}
	BlockFirePalette = Palette{
		Chars:  []rune(" .:-=+*#%@█"),
		Colors: FireColors,
	}
	FireworksPalette = Palette{
		Chars:  []rune(" .:*oO@"),
		Colors: []string{"#000000", "#1a1a40", "#3b3b9e", "#7f5fff", "#ff7fd0", "#ffd36b", "#ffffff"},
	}
	LifePalette = Palette{Chars: []rune(" █")}

	FireColors = []string{
		"#000000", "#120000", "#2a0000", "#4a0500", "#7a1a00",
		"#b23a00", "#ff6a00", "#ffb000", "#fff2a6",
	}
)

// ParsePalette builds a character-only palette from a string.
func ParsePalette(chars string) Palette {
	return Palette{Chars: []rune(chars)}
}

func (p Palette) chars() []rune {
	if len(p.Chars) == 0 {
		return []rune{' '}
	}
	return p.Chars
}

// Index returns the palette slot for v on a ramp of n entries.
func Index(v, max float64, n int) int {
	if n <= 1 || !(max > 0) {
		return 0
	}
	i := int(math.Round(v / max * float64(n-1)))
	if i < 0 || math.IsNaN(v) {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Render draws the grid with one character per cell, rows joined by '\n'.
func Render(g *Grid, p Palette) string {
	chars := p.chars()
	var b strings.Builder
	b.Grow((g.W + 1) * g.H)
	for y := 0; y < g.H; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		row := g.cells[y*g.W : (y+1)*g.W]
		for _, v := range row {
			b.WriteRune(chars[Index(v, g.Max, len(chars))])
		}
	}
	return b.String()
}

// Cell is one rendered character with its colour ("" when uncoloured).
type Cell struct {
	Ch    rune   `json:"ch"`
	Color string `json:"color,omitempty"`
}

// lookup precomputes the char/colour pair for each level.
type lookup struct {
	cells []Cell
}

func newLookup(p Palette) lookup {
	chars := p.chars()
	levels := max(2, len(chars), len(p.Colors))
	t := lookup{cells: make([]Cell, levels)}
	for i := range t.cells {
		t.cells[i].Ch = chars[rescale(i, levels, len(chars))]
		if len(p.Colors) > 0 {
			t.cells[i].Color = p.Colors[rescale(i, levels, len(p.Colors))]
		}
	}
	return t
}

func (t lookup) at(v, max float64) Cell {
	return t.cells[Index(v, max, len(t.cells))]
}

// rescale maps level i of n onto a list of m entries.
func rescale(i, n, m int) int {
	if m <= 1 || n <= 1 {
		return 0
	}
	j := int(math.Round(float64(i) * float64(m-1) / float64(n-1)))
	return min(max(j, 0), m-1)
}

// RenderCells returns the styled cells row by row.
func RenderCells(g *Grid, p Palette) [][]Cell {
	t := newLookup(p)
	out := make([][]Cell, g.H)
	for y := range out {
		row := make([]Cell, g.W)
		for x := range row {
			row[x] = t.at(g.cells[y*g.W+x], g.Max)
		}
		out[y] = row
	}
	return out
}

// RenderHTML returns escaped markup with runs of equal colour wrapped in a
// single span. Uncoloured palettes produce plain escaped text.
func RenderHTML(g *Grid, p Palette) string {
	var b strings.Builder
	for y, row := range RenderCells(g, p) {
		if y > 0 {
			b.WriteByte('\n')
		}
		for i := 0; i < len(row); {
			j := i
			var run strings.Builder
			for j < len(row) && row[j].Color == row[i].Color {
				run.WriteRune(row[j].Ch)
				j++
			}
			text := html.EscapeString(run.String())
			if row[i].Color == "" {
				b.WriteString(text)
			} else {
				b.WriteString(`<span style="color:`)
				b.WriteString(row[i].Color)
				b.WriteString(`">`)
				b.WriteString(text)
				b.WriteString(`</span>`)
			}
			i = j
		}
	}
	return b.String()
}
