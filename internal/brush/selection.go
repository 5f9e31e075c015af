package brush

import (
	"math/bits"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// selectionMask is a bitset over every cell of the grid.
type selectionMask struct {
	bits  []uint64
	count int
}

func newSelectionMask() *selectionMask {
	return &selectionMask{bits: make([]uint64, (grid.TotalCells+63)/64)}
}

func (m *selectionMask) has(idx int) bool {
	return m.bits[idx>>6]&(1<<(uint(idx)&63)) != 0
}

// set changes the state of idx and reports whether it changed.
func (m *selectionMask) set(idx int, on bool) bool {
	if m.has(idx) == on {
		return false
	}
	if on {
		m.bits[idx>>6] |= 1 << (uint(idx) & 63)
		m.count++
	} else {
		m.bits[idx>>6] &^= 1 << (uint(idx) & 63)
		m.count--
	}
	return true
}

func (m *selectionMask) clear() {
	clear(m.bits)
	m.count = 0
}

// coords lists selected cells in row-major order.
func (m *selectionMask) coords() []grid.Coord {
	out := make([]grid.Coord, 0, m.count)
	for w, word := range m.bits {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, grid.CoordAt(w*64+bit))
			word &^= 1 << uint(bit)
		}
	}
	return out
}
