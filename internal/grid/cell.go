package grid

// Cell is an owned cell as persisted by the ownership store.
type Cell struct {
	X     int    `json:"x" cbor:"1,keyasint"`
	Y     int    `json:"y" cbor:"2,keyasint"`
	Owner string `json:"owner" cbor:"3,keyasint"`
	Color Color  `json:"color" cbor:"4,keyasint"`
}

// Coord returns the cell's coordinate.
func (c Cell) Coord() Coord {
	return Coord{X: c.X, Y: c.Y}
}

// ColorChange is one requested repaint of a cell.
type ColorChange struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Color Color `json:"color"`
}

// Coord returns the coordinate being repainted.
func (c ColorChange) Coord() Coord {
	return Coord{X: c.X, Y: c.Y}
}
