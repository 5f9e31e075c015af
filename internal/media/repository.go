package media

import (
	"context"
	"sort"
	"sync"
)

// Repository persists media and link button records.
type Repository interface {
	CreateMedia(ctx context.Context, m Media) error
	GetMedia(ctx context.Context, id string) (*Media, error)
	ListMedia(ctx context.Context) ([]Media, error)
	CountMediaBy(ctx context.Context, wallet string) (int, error)
	// DeleteMedia removes the record only if wallet owns it and returns it.
	DeleteMedia(ctx context.Context, id, wallet string) (*Media, error)

	CreateLinkButton(ctx context.Context, b LinkButton) error
	ListLinkButtons(ctx context.Context) ([]LinkButton, error)
	DeleteLinkButton(ctx context.Context, id, wallet string) error
}

// InMemoryRepository is a Repository for development and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	media   map[string]Media
	buttons map[string]LinkButton
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		media:   make(map[string]Media),
		buttons: make(map[string]LinkButton),
	}
}

// CreateMedia implements Repository.
func (r *InMemoryRepository) CreateMedia(_ context.Context, m Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[m.ID] = m
	return nil
}

// GetMedia implements Repository.
func (r *InMemoryRepository) GetMedia(_ context.Context, id string) (*Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.media[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// ListMedia implements Repository, oldest first.
func (r *InMemoryRepository) ListMedia(_ context.Context) ([]Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Media, 0, len(r.media))
	for _, m := range r.media {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CountMediaBy implements Repository.
func (r *InMemoryRepository) CountMediaBy(_ context.Context, wallet string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.media {
		if m.Wallet == wallet {
			n++
		}
	}
	return n, nil
}

// DeleteMedia implements Repository.
func (r *InMemoryRepository) DeleteMedia(_ context.Context, id, wallet string) (*Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.media[id]
	if !ok || m.Wallet != wallet {
		return nil, ErrNotFound
	}
	delete(r.media, id)
	return &m, nil
}

// CreateLinkButton implements Repository.
func (r *InMemoryRepository) CreateLinkButton(_ context.Context, b LinkButton) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons[b.ID] = b
	return nil
}

// ListLinkButtons implements Repository, oldest first.
func (r *InMemoryRepository) ListLinkButtons(_ context.Context) ([]LinkButton, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LinkButton, 0, len(r.buttons))
	for _, b := range r.buttons {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteLinkButton implements Repository.
func (r *InMemoryRepository) DeleteLinkButton(_ context.Context, id, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buttons[id]
	if !ok || b.Wallet != wallet {
		return ErrNotFound
	}
	delete(r.buttons, id)
	return nil
}
