package grid

import (
	"sync"
)

// Snapshot is an immutable copy of the grid at one version.
// Callers must not modify the slices.
type Snapshot struct {
	Version  uint64
	Owners   []OwnerID
	Colors   []Color
	registry *Registry
}

// OwnerOf returns the OwnerID of c.
func (s *Snapshot) OwnerOf(c Coord) OwnerID {
	return s.Owners[c.Index()]
}

// WalletOf returns the wallet owning c, or "" if unowned.
func (s *Snapshot) WalletOf(c Coord) string {
	return s.registry.Wallet(s.Owners[c.Index()])
}

// IDOf returns the OwnerID of wallet in this snapshot.
func (s *Snapshot) IDOf(wallet string) (OwnerID, bool) {
	return s.registry.Lookup(wallet)
}

// CountOwnedBy returns how many cells id owns.
func (s *Snapshot) CountOwnedBy(id OwnerID) int {
	if id == Unowned {
		return 0
	}
	n := 0
	for _, o := range s.Owners {
		if o == id {
			n++
		}
	}
	return n
}

// Cells lists every owned cell in row-major order.
func (s *Snapshot) Cells() []Cell {
	var cells []Cell
	for i, o := range s.Owners {
		if o == Unowned {
			continue
		}
		c := CoordAt(i)
		cells = append(cells, Cell{X: c.X, Y: c.Y, Owner: s.registry.Wallet(o), Color: s.Colors[i]})
	}
	return cells
}

// State owns the authoritative in-process copy of the grid: owner ids, colors and
// the wallet registry. Every mutation bumps Version. Readers only ever receive
// Snapshots.
type State struct {
	mu       sync.RWMutex
	version  uint64
	owners   []OwnerID
	colors   []Color
	registry *Registry

	// snap caches the snapshot for the current version.
	snap *Snapshot
}

// NewState creates an empty, all-white, unowned grid.
func NewState() *State {
	s := &State{
		owners:   make([]OwnerID, TotalCells),
		colors:   make([]Color, TotalCells),
		registry: NewRegistry(),
	}
	for i := range s.colors {
		s.colors[i] = White
	}
	return s
}

// Load replaces the grid contents with cells, as returned by the ownership
// store's ListOwned. Cells outside the grid are ignored.
func (s *State) Load(cells []Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(cells)
}

// LoadIfVersion is Load, applied only while the grid is still at version.
// It reports whether cells were loaded. Callers read Version before listing
// the store so that a change made in between is never overwritten.
func (s *State) LoadIfVersion(version uint64, cells []Cell) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.load(cells)
	return true
}

// load must be called with mu held for writing.
func (s *State) load(cells []Cell) {
	for i := range s.owners {
		s.owners[i] = Unowned
		s.colors[i] = White
	}
	s.registry = NewRegistry()
	for _, c := range cells {
		coord := c.Coord()
		if !coord.Valid() {
			continue
		}
		idx := coord.Index()
		s.owners[idx] = s.registry.Intern(c.Owner)
		s.colors[idx] = c.Color
	}
	s.bump()
}

// ApplyAcquired marks coords as owned by wallet. Cells that already have an
// owner are left untouched; ownership never transfers.
func (s *State) ApplyAcquired(wallet string, coords []Coord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.registry.Intern(wallet)
	applied := 0
	for _, c := range coords {
		if !c.Valid() {
			continue
		}
		idx := c.Index()
		if s.owners[idx] != Unowned {
			continue
		}
		s.owners[idx] = id
		applied++
	}
	if applied > 0 {
		s.bump()
	}
	return applied
}

// ApplyColors repaints the cells in changes that wallet owns.
func (s *State) ApplyColors(wallet string, changes []ColorChange) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.registry.Lookup(wallet)
	if !ok {
		return 0
	}
	applied := 0
	for _, ch := range changes {
		c := ch.Coord()
		if !c.Valid() || s.owners[c.Index()] != id {
			continue
		}
		s.colors[c.Index()] = ch.Color
		applied++
	}
	if applied > 0 {
		s.bump()
	}
	return applied
}

// ClearColors resets every cell owned by wallet to white.
func (s *State) ClearColors(wallet string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.registry.Lookup(wallet)
	if !ok {
		return 0
	}
	cleared := 0
	for i, o := range s.owners {
		if o == id && s.colors[i] != White {
			s.colors[i] = White
			cleared++
		}
	}
	if cleared > 0 {
		s.bump()
	}
	return cleared
}

// Version returns the current version.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns an immutable copy of the grid. Repeated calls at the same
// version share one copy.
func (s *State) Snapshot() *Snapshot {
	s.mu.RLock()
	if s.snap != nil {
		snap := s.snap
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		s.snap = &Snapshot{
			Version:  s.version,
			Owners:   append([]OwnerID(nil), s.owners...),
			Colors:   append([]Color(nil), s.colors...),
			registry: s.registry.clone(),
		}
	}
	return s.snap
}

// Cells lists every owned cell in row-major order.
func (s *State) Cells() []Cell {
	return s.Snapshot().Cells()
}

// bump must be called with mu held for writing.
func (s *State) bump() {
	s.version++
	s.snap = nil
}
