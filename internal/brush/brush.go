// Package brush turns pointer strokes into grid changes: selecting free cells
// for acquisition, painting owned cells, and positioning media or link-button
// drafts inside owned regions.
package brush

import (
	"fmt"
	"strings"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// Size limits of a brush.
const (
	MinSize = 1
	MaxSize = 25
)

// Tool is the active interaction mode.
type Tool int

const (
	ToolSelect Tool = iota
	ToolPaint
	ToolMedia
	ToolLinkButton
)

var toolNames = map[Tool]string{
	ToolSelect:     "select",
	ToolPaint:      "paint",
	ToolMedia:      "media",
	ToolLinkButton: "link_button",
}

func (t Tool) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tool(%d)", int(t))
}

// ParseTool maps a tool name to a Tool.
func ParseTool(s string) (Tool, error) {
	for t, name := range toolNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tool %q", s)
}

// Shape is the footprint of a brush.
type Shape int

const (
	ShapeSquare Shape = iota
	ShapeCircle
)

func (s Shape) String() string {
	if s == ShapeCircle {
		return "circle"
	}
	return "square"
}

// ParseShape maps "square" or "circle" to a Shape. Empty means square.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "", "square":
		return ShapeSquare, nil
	case "circle":
		return ShapeCircle, nil
	}
	return 0, fmt.Errorf("unknown brush shape %q", s)
}

// ClampSize limits a brush size to [MinSize, MaxSize].
func ClampSize(size int) int {
	return min(max(size, MinSize), MaxSize)
}

// Cells returns the in-grid cells covered by a brush of the given size and
// shape centered on center, in row-major order. The square covers a size × size
// box starting half = size/2 cells before the center. The circle keeps the
// cells of that box with dx²+dy² ≤ half².
func Cells(center grid.Coord, size int, shape Shape) []grid.Coord {
	size = ClampSize(size)
	half := size / 2
	sx, sy := center.X-half, center.Y-half

	out := make([]grid.Coord, 0, size*size)
	for y := sy; y < sy+size; y++ {
		if y < 0 || y >= grid.Size {
			continue
		}
		for x := sx; x < sx+size; x++ {
			if x < 0 || x >= grid.Size {
				continue
			}
			if shape == ShapeCircle {
				dx, dy := x-center.X, y-center.Y
				if dx*dx+dy*dy > half*half {
					continue
				}
			}
			out = append(out, grid.Coord{X: x, Y: y})
		}
	}
	return out
}
