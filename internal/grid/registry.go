package grid

// OwnerID is a dense local identifier for a principal. Zero means unowned.
type OwnerID int32

// Unowned is the OwnerID of a cell nobody has acquired.
const Unowned OwnerID = 0

// Registry assigns OwnerIDs to wallets in first-seen order.
// It is not safe for concurrent use; State guards it.
type Registry struct {
	ids     map[string]OwnerID
	wallets []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:     make(map[string]OwnerID),
		wallets: []string{""},
	}
}

// Intern returns the OwnerID for wallet, assigning a new one if needed.
func (r *Registry) Intern(wallet string) OwnerID {
	if wallet == "" {
		return Unowned
	}
	if id, ok := r.ids[wallet]; ok {
		return id
	}
	id := OwnerID(len(r.wallets))
	r.ids[wallet] = id
	r.wallets = append(r.wallets, wallet)
	return id
}

// Lookup returns the OwnerID for wallet without assigning one.
func (r *Registry) Lookup(wallet string) (OwnerID, bool) {
	id, ok := r.ids[wallet]
	return id, ok
}

// Wallet returns the wallet for id, or "" for Unowned and unknown ids.
func (r *Registry) Wallet(id OwnerID) string {
	if id <= 0 || int(id) >= len(r.wallets) {
		return ""
	}
	return r.wallets[id]
}

// Len returns the number of registered wallets.
func (r *Registry) Len() int {
	return len(r.wallets) - 1
}

func (r *Registry) clone() *Registry {
	c := &Registry{
		ids:     make(map[string]OwnerID, len(r.ids)),
		wallets: append([]string(nil), r.wallets...),
	}
	for k, v := range r.ids {
		c.ids[k] = v
	}
	return c
}
