package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

// PlotSeries renders one time series as an ascii chart with a caption.
func PlotSeries(data []float64, caption string) string {
	if len(data) < 2 {
		return "(not enough data)"
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

// PlotColumns renders each column of a row-major series as its own
// chart. Captions are matched by index; missing ones fall back to a
// generic label.
func PlotColumns(rows [][]float64, captions []string, prefix string) string {
	if len(rows) == 0 {
		return "(no data)"
	}
	var b strings.Builder
	for col := 0; col < len(rows[0]); col++ {
		data := make([]float64, len(rows))
		for i := range rows {
			if col < len(rows[i]) {
				data[i] = rows[i][col]
			}
		}
		caption := fmt.Sprintf("%s%d vs time", prefix, col)
		if col < len(captions) && captions[col] != "" {
			caption = captions[col]
		}
		b.WriteString(PlotSeries(data, caption))
		b.WriteString("\n\n")
	}
	return b.String()
}

// PlotCostHistory renders the per-iteration objective values.
func PlotCostHistory(history []float64) string {
	return PlotSeries(history, "cost vs iteration")
}

// StateCaptions names the state components of the built-in models for
// nicer plot captions.
func StateCaptions(model string) []string {
	switch model {
	case "pendulum":
		return []string{"theta (angle)", "omega (angular velocity)"}
	case "cartpole":
		return []string{"cart position", "cart velocity", "pole angle", "pole angular velocity"}
	case "double_integrator":
		return []string{"position", "velocity"}
	}
	return nil
}

// Braille cells pack 2x4 dots each; the plot below addresses individual
// dots, so the drawable area is (width*2) x (height*4).
var brailleDots = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// PhasePlot draws the (xi, yi) state components against each other as a
// braille curve, earliest to latest sample.
func PhasePlot(states [][]float64, xi, yi, width, height int) string {
	if len(states) == 0 || xi >= len(states[0]) || yi >= len(states[0]) {
		return "(no data)"
	}

	xMin, xMax := states[0][xi], states[0][xi]
	yMin, yMax := states[0][yi], states[0][yi]
	for _, s := range states {
		xMin, xMax = minMax(xMin, xMax, s[xi])
		yMin, yMax = minMax(yMin, yMax, s[yi])
	}
	xRange, yRange := xMax-xMin, yMax-yMin
	if xRange == 0 {
		xRange = 1
	}
	if yRange == 0 {
		yRange = 1
	}

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = 0x2800
		}
	}
	set := func(px, py int) {
		if px < 0 || py < 0 {
			return
		}
		col, row := px/2, py/4
		if col >= width || row >= height {
			return
		}
		grid[row][col] |= brailleDots[py%4][px%2]
	}

	pw, ph := width*2, height*4
	prevX, prevY := -1, -1
	for _, s := range states {
		px := int(float64(pw-1) * (s[xi] - xMin) / xRange)
		py := ph - 1 - int(float64(ph-1)*(s[yi]-yMin)/yRange)
		if prevX >= 0 {
			drawLine(set, prevX, prevY, px, py)
		}
		set(px, py)
		prevX, prevY = px, py
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %8.3f ┌%s┐\n", yMax, strings.Repeat("─", width)))
	for i, row := range grid {
		if i == height/2 {
			b.WriteString(fmt.Sprintf("  %8.3f │", (yMax+yMin)/2))
		} else {
			b.WriteString("           │")
		}
		b.WriteString(string(row))
		b.WriteString("│\n")
	}
	b.WriteString(fmt.Sprintf("  %8.3f └%s┘\n", yMin, strings.Repeat("─", width)))
	b.WriteString(fmt.Sprintf("           %-8.3f%s%8.3f\n", xMin, strings.Repeat(" ", width-16), xMax))
	return b.String()
}

func minMax(lo, hi, v float64) (float64, float64) {
	if v < lo {
		lo = v
	}
	if v > hi {
		hi = v
	}
	return lo, hi
}

// drawLine rasterizes with Bresenham steps through the pixel setter.
func drawLine(set func(x, y int), x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
