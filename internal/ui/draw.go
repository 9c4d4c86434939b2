package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"

	"skidoodle/spotify-saver/internal/artwork"
)

const (
	upperHalfBlock   = "▀"
	defaultFillColor = "#1DB954"
)

// fillColor picks the dominant colour of img for the box fill.
func fillColor(img image.Image) lipgloss.Color {
	if img == nil {
		return lipgloss.Color(defaultFillColor)
	}
	colors, err := prominentcolor.KmeansWithAll(3, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(colors) == 0 {
		return lipgloss.Color(defaultFillColor)
	}
	c := colors[0].Color
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// filledBox renders a w×h box in a single colour.
func filledBox(fill lipgloss.Color, w, h int) []string {
	style := lipgloss.NewStyle().Background(fill)
	line := style.Render(strings.Repeat(" ", w))
	lines := make([]string, h)
	for i := range lines {
		lines[i] = line
	}
	return lines
}

// artworkBox renders img into a w×h cell box. Each cell shows two vertically
// stacked pixels through an upper half block; transparent areas show fill.
func artworkBox(img image.Image, fill lipgloss.Color, w, h int) []string {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h*2))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(toRGBA(fill)), image.Point{}, xdraw.Src)
	scaled := artwork.Scale(img, w, h*2)
	xdraw.Draw(canvas, canvas.Bounds(), scaled, image.Point{}, xdraw.Over)

	lines := make([]string, h)
	var b strings.Builder
	for row := 0; row < h; row++ {
		b.Reset()
		for col := 0; col < w; col++ {
			top := hexColor(canvas.RGBAAt(col, row*2))
			bottom := hexColor(canvas.RGBAAt(col, row*2+1))
			b.WriteString(lipgloss.NewStyle().Foreground(top).Background(bottom).Render(upperHalfBlock))
		}
		lines[row] = b.String()
	}
	return lines
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func toRGBA(c lipgloss.Color) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(string(c), "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// compose places box at col,row inside a width×height frame. The box is kept
// fully on screen when it fits.
func compose(width, height, col, row int, box []string, boxW int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	col = clampInt(col, 0, width-boxW)
	row = clampInt(row, 0, height-len(box))

	pad := strings.Repeat(" ", col)
	lines := make([]string, height)
	for i := range lines {
		if i >= row && i-row < len(box) {
			lines[i] = pad + box[i-row]
		}
	}
	return strings.Join(lines, "\n")
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
