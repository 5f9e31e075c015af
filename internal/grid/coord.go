// Package grid defines the cell grid that wallets acquire and paint: coordinates,
// rectangles, colors, the wallet registry and the GridState coordinator.
package grid

import "fmt"

// Size is the width and height of the square grid.
const Size = 1000

// TotalCells is the number of addressable cells.
const TotalCells = Size * Size

// Coord addresses one cell of the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Valid reports whether the coordinate lies inside the grid.
func (c Coord) Valid() bool {
	return c.X >= 0 && c.X < Size && c.Y >= 0 && c.Y < Size
}

// Index returns the row-major offset of the cell. The coordinate must be valid.
func (c Coord) Index() int {
	return c.Y*Size + c.X
}

// String formats the coordinate as "(x, y)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// CoordAt converts a row-major offset back into a coordinate.
func CoordAt(idx int) Coord {
	return Coord{X: idx % Size, Y: idx / Size}
}

// Dedup removes repeated coordinates, keeping the first occurrence of each.
func Dedup(coords []Coord) []Coord {
	seen := make(map[Coord]struct{}, len(coords))
	out := make([]Coord, 0, len(coords))
	for _, c := range coords {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Rect is an axis-aligned rectangle of cells anchored at its top-left corner.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the rectangle is non-empty and fully inside the grid.
func (r Rect) Valid() bool {
	return r.X >= 0 && r.X < Size && r.Width > 0 && r.Width <= Size-r.X &&
		r.Y >= 0 && r.Y < Size && r.Height > 0 && r.Height <= Size-r.Y
}

// Area returns the number of cells covered by the rectangle, or 0 if it is
// not valid.
func (r Rect) Area() int {
	if !r.Valid() {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether c lies inside the rectangle.
func (r Rect) Contains(c Coord) bool {
	return c.X >= r.X && c.X-r.X < r.Width && c.Y >= r.Y && c.Y-r.Y < r.Height
}

// Clamp normalizes the rectangle so that it fits inside the grid, keeping at
// least one cell in each dimension.
func (r Rect) Clamp() Rect {
	r.Width = clamp(r.Width, 1, Size)
	r.Height = clamp(r.Height, 1, Size)
	r.X = clamp(r.X, 0, Size-r.Width)
	r.Y = clamp(r.Y, 0, Size-r.Height)
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
