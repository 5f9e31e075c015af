package ownership

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/pixelclaim/internal/grid"
)

type memCell struct {
	owner string
	color grid.Color
}

// InMemoryStore implements Store with in-memory maps.
type InMemoryStore struct {
	mu         sync.RWMutex
	cells      map[grid.Coord]*memCell
	purchases  map[string]*Purchase // by ID
	signatures map[string]string    // signature -> purchase ID
	links      map[string][]grid.Coord
	now        func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cells:      make(map[grid.Coord]*memCell),
		purchases:  make(map[string]*Purchase),
		signatures: make(map[string]string),
		links:      make(map[string][]grid.Coord),
		now:        time.Now,
	}
}

// TryAcquire implements Store.
func (s *InMemoryStore) TryAcquire(_ context.Context, c grid.Coord, wallet string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.cells[c]; taken {
		return false, nil
	}
	s.cells[c] = &memCell{owner: wallet, color: grid.White}
	return true, nil
}

// RecordPurchase implements Store.
func (s *InMemoryStore) RecordPurchase(_ context.Context, p Purchase) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.signatures[p.Signature]; used {
		return "", ErrSignatureUsed
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.Amount != nil {
		p.Amount = new(big.Int).Set(p.Amount)
	}
	s.purchases[p.ID] = &p
	s.signatures[p.Signature] = p.ID
	return p.ID, nil
}

// LinkPurchaseCell implements Store.
func (s *InMemoryStore) LinkPurchaseCell(_ context.Context, purchaseID string, c grid.Coord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[purchaseID] = append(s.links[purchaseID], c)
	return nil
}

// PurchaseCells returns the cells linked to a purchase.
func (s *InMemoryStore) PurchaseCells(purchaseID string) []grid.Coord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]grid.Coord(nil), s.links[purchaseID]...)
}

// SetColor implements Store.
func (s *InMemoryStore) SetColor(_ context.Context, c grid.Coord, wallet string, color grid.Color) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.cells[c]
	if !ok || cell.owner != wallet {
		return false, nil
	}
	cell.color = color
	return true, nil
}

// SetColors implements Store.
func (s *InMemoryStore) SetColors(_ context.Context, wallet string, changes []grid.ColorChange) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, ch := range changes {
		cell, ok := s.cells[ch.Coord()]
		if !ok || cell.owner != wallet {
			continue
		}
		cell.color = ch.Color
		updated++
	}
	return updated, nil
}

// ClearColors implements Store.
func (s *InMemoryStore) ClearColors(_ context.Context, wallet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, cell := range s.cells {
		if cell.owner == wallet && cell.color != grid.White {
			cell.color = grid.White
			cleared++
		}
	}
	return cleared, nil
}

// ListOwned implements Store. Cells are returned in row-major order.
func (s *InMemoryStore) ListOwned(_ context.Context) ([]grid.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := make([]grid.Cell, 0, len(s.cells))
	for c, cell := range s.cells {
		cells = append(cells, grid.Cell{X: c.X, Y: c.Y, Owner: cell.owner, Color: cell.color})
	}
	sort.Slice(cells, func(i, j int) bool {
		return cells[i].Coord().Index() < cells[j].Coord().Index()
	})
	return cells, nil
}

// ListPurchases implements Store, newest first.
func (s *InMemoryStore) ListPurchases(_ context.Context, wallet string, limit int) ([]Purchase, error) {
	if limit <= 0 {
		limit = DefaultPurchaseLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Purchase
	for _, p := range s.purchases {
		if p.Wallet == wallet {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountOwnedBy implements Store.
func (s *InMemoryStore) CountOwnedBy(_ context.Context, wallet string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, cell := range s.cells {
		if cell.owner == wallet {
			n++
		}
	}
	return n, nil
}
