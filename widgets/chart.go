package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Series is a fixed-length history of samples; the oldest falls off the left
// edge when a new one is pushed, like a scrolling strip chart.
type Series struct {
	buf  []uint16
	next int
	n    int
}

func NewSeries(points int) *Series {
	if points < 1 {
		points = 1
	}
	return &Series{buf: make([]uint16, points)}
}

func (s *Series) Push(v uint16) {
	s.buf[s.next] = v
	s.next = (s.next + 1) % len(s.buf)
	if s.n < len(s.buf) {
		s.n++
	}
}

// Values returns the samples oldest first.
func (s *Series) Values() []uint16 {
	out := make([]uint16, 0, s.n)
	start := s.next - s.n
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < s.n; i++ {
		out = append(out, s.buf[(start+i)%len(s.buf)])
	}
	return out
}

func (s *Series) Len() int { return s.n }
func (s *Series) Cap() int { return len(s.buf) }

// Last returns the newest sample, 0 when empty.
func (s *Series) Last() uint16 {
	if s.n == 0 {
		return 0
	}
	return s.buf[(s.next-1+len(s.buf))%len(s.buf)]
}

// ChartLine is one plotted series.
type ChartLine struct {
	Values []uint16
	Glyph  rune
	Style  lipgloss.Style
}

// Chart is a fixed-range text strip chart.
type Chart struct {
	Min, Max uint16
	Height   int
	Width    int // columns; the newest Width samples are drawn
	Overlap  rune
	Axis     lipgloss.Style
}

// row maps v to 0 (top) .. Height-1 (bottom), or -1 for zero samples.
func (c Chart) row(v uint16) int {
	if v == 0 {
		return -1
	}
	if v <= c.Min {
		return c.Height - 1
	}
	if v >= c.Max {
		return 0
	}
	frac := float64(v-c.Min) / float64(c.Max-c.Min)
	return c.Height - 1 - int(frac*float64(c.Height-1)+0.5)
}

// Render draws the lines right-aligned so the newest sample is at the right
// edge. Zero samples (no data yet) are left blank.
func (c Chart) Render(lines ...ChartLine) string {
	if c.Height < 1 || c.Width < 1 || c.Max <= c.Min {
		return ""
	}

	grid := make([][]int, c.Height) // index into lines, -1 empty, -2 overlap
	for r := range grid {
		grid[r] = make([]int, c.Width)
		for col := range grid[r] {
			grid[r][col] = -1
		}
	}

	for li, l := range lines {
		vals := l.Values
		if len(vals) > c.Width {
			vals = vals[len(vals)-c.Width:]
		}
		offset := c.Width - len(vals)
		for i, v := range vals {
			r := c.row(v)
			if r < 0 {
				continue
			}
			col := offset + i
			if grid[r][col] == -1 {
				grid[r][col] = li
			} else if grid[r][col] != li {
				grid[r][col] = -2
			}
		}
	}

	overlap := c.Overlap
	if overlap == 0 {
		overlap = '*'
	}

	var out strings.Builder
	for r, cells := range grid {
		out.WriteString(c.Axis.Render("│"))
		for _, cell := range cells {
			switch {
			case cell == -1:
				out.WriteByte(' ')
			case cell == -2:
				out.WriteRune(overlap)
			default:
				out.WriteString(lines[cell].Style.Render(string(lines[cell].Glyph)))
			}
		}
		if r < len(grid)-1 {
			out.WriteByte('\n')
		}
	}
	out.WriteByte('\n')
	out.WriteString(c.Axis.Render("└" + strings.Repeat("─", c.Width)))
	return out.String()
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values in one row of block characters scaled to
// [min, max]. Zero samples render as spaces.
func Sparkline(values []uint16, min, max uint16) string {
	if max <= min {
		return ""
	}
	var out strings.Builder
	for _, v := range values {
		if v == 0 {
			out.WriteByte(' ')
			continue
		}
		if v < min {
			v = min
		}
		if v > max {
			v = max
		}
		i := int(float64(v-min) / float64(max-min) * float64(len(sparkBlocks)-1))
		out.WriteRune(sparkBlocks[i])
	}
	return out.String()
}
