// Package rectindex answers "how many cells of this rectangle does a principal
// own" in constant time using a summed-area table over the ownership grid.
package rectindex

import "github.com/onnwee/pixelclaim/internal/grid"

// stride is the row length of the prefix table, one larger than the grid.
const stride = grid.Size + 1

// Index is a summed-area table over "cell owned by target". It is immutable
// once built and safe for concurrent reads.
type Index struct {
	target grid.OwnerID
	sums   []int32
}

// Build constructs the index for target from a row-major owner grid of
// grid.Size × grid.Size entries. Building is O(N²).
func Build(owners []grid.OwnerID, target grid.OwnerID) *Index {
	sums := make([]int32, stride*stride)
	if target != grid.Unowned {
		for y := 0; y < grid.Size; y++ {
			var row int32
			base := y * grid.Size
			for x := 0; x < grid.Size; x++ {
				if owners[base+x] == target {
					row++
				}
				sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + row
			}
		}
	}
	return &Index{target: target, sums: sums}
}

// Target returns the principal the index was built for.
func (ix *Index) Target() grid.OwnerID {
	return ix.target
}

// CountOwned returns how many cells of the rectangle anchored at (x, y) with
// size w × h are owned by the target. The rectangle is clipped to the grid.
func (ix *Index) CountOwned(x, y, w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, grid.Size), min(y+h, grid.Size)
	if x0 >= x1 || y0 >= y1 {
		return 0
	}
	s := ix.sums
	return int(s[y1*stride+x1] - s[y0*stride+x1] - s[y1*stride+x0] + s[y0*stride+x0])
}

// FullyOwned reports whether every cell of r is owned by the target.
// Rectangles that are not fully inside the grid are never fully owned.
func (ix *Index) FullyOwned(r grid.Rect) bool {
	if !r.Valid() {
		return false
	}
	return ix.CountOwned(r.X, r.Y, r.Width, r.Height) == r.Area()
}

// FindFirstFullyOwnedRect scans anchors in row-major order and returns the
// first w × h rectangle the target owns entirely.
func (ix *Index) FindFirstFullyOwnedRect(w, h int) (grid.Coord, bool) {
	if w <= 0 || h <= 0 || w > grid.Size || h > grid.Size {
		return grid.Coord{}, false
	}
	area := w * h
	for y := 0; y+h <= grid.Size; y++ {
		for x := 0; x+w <= grid.Size; x++ {
			if ix.CountOwned(x, y, w, h) == area {
				return grid.Coord{X: x, Y: y}, true
			}
		}
	}
	return grid.Coord{}, false
}
