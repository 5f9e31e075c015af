package grid

import "testing"

func TestState_LoadAndSnapshot(t *testing.T) {
	s := NewState()
	s.Load([]Cell{
		{X: 1, Y: 2, Owner: "walletA", Color: 0x112233},
		{X: 5, Y: 5, Owner: "walletB", Color: White},
		{X: 2, Y: 2, Owner: "walletA", Color: White},
	})

	snap := s.Snapshot()
	idA, ok := snap.IDOf("walletA")
	if !ok {
		t.Fatal("expected walletA to be registered")
	}
	if snap.OwnerOf(Coord{1, 2}) != idA {
		t.Errorf("expected (1,2) owned by walletA")
	}
	if got := snap.WalletOf(Coord{5, 5}); got != "walletB" {
		t.Errorf("expected walletB, got %q", got)
	}
	if got := snap.WalletOf(Coord{0, 0}); got != "" {
		t.Errorf("expected unowned cell, got %q", got)
	}
	if got := snap.CountOwnedBy(idA); got != 2 {
		t.Errorf("expected 2 cells for walletA, got %d", got)
	}
	if snap.Colors[Coord{1, 2}.Index()] != 0x112233 {
		t.Errorf("expected color to be loaded")
	}
}

func TestState_LoadIfVersion(t *testing.T) {
	s := NewState()
	s.Load([]Cell{{X: 1, Y: 1, Owner: "walletA", Color: White}})

	// A reload listed before this acquisition must not drop it.
	listedAt := s.Version()
	stale := []Cell{{X: 1, Y: 1, Owner: "walletA", Color: White}}
	s.ApplyAcquired("walletB", []Coord{{X: 7, Y: 7}})

	if s.LoadIfVersion(listedAt, stale) {
		t.Fatal("LoadIfVersion applied a listing older than the grid")
	}
	if got := s.Snapshot().WalletOf(Coord{X: 7, Y: 7}); got != "walletB" {
		t.Errorf("owner of (7,7) = %q, want walletB", got)
	}

	current := s.Version()
	fresh := append(stale, Cell{X: 7, Y: 7, Owner: "walletB", Color: White}, Cell{X: 3, Y: 3, Owner: "walletC", Color: White})
	if !s.LoadIfVersion(current, fresh) {
		t.Fatal("LoadIfVersion rejected a listing at the current version")
	}
	if len(s.Cells()) != 3 || s.Version() != current+1 {
		t.Errorf("cells = %v version = %d, want 3 cells at %d", s.Cells(), s.Version(), current+1)
	}
}

func TestState_ApplyAcquiredNeverTransfers(t *testing.T) {
	s := NewState()
	if n := s.ApplyAcquired("walletA", []Coord{{0, 0}, {0, 1}}); n != 2 {
		t.Fatalf("expected 2 applied, got %d", n)
	}
	v := s.Version()

	if n := s.ApplyAcquired("walletB", []Coord{{0, 0}, {9, 9}}); n != 1 {
		t.Fatalf("expected 1 applied, got %d", n)
	}
	if s.Version() == v {
		t.Error("expected version to advance")
	}

	snap := s.Snapshot()
	if got := snap.WalletOf(Coord{0, 0}); got != "walletA" {
		t.Errorf("expected (0,0) to stay with walletA, got %q", got)
	}
	if got := snap.WalletOf(Coord{9, 9}); got != "walletB" {
		t.Errorf("expected (9,9) owned by walletB, got %q", got)
	}
}

func TestState_SnapshotIsIsolated(t *testing.T) {
	s := NewState()
	s.ApplyAcquired("walletA", []Coord{{3, 3}})
	before := s.Snapshot()
	if s.Snapshot() != before {
		t.Error("expected snapshot to be reused at the same version")
	}

	s.ApplyAcquired("walletA", []Coord{{4, 4}})
	if before.OwnerOf(Coord{4, 4}) != Unowned {
		t.Error("old snapshot must not observe later mutations")
	}
	if s.Snapshot().OwnerOf(Coord{4, 4}) == Unowned {
		t.Error("new snapshot must observe the mutation")
	}
}

func TestState_ApplyColorsOnlyOwner(t *testing.T) {
	s := NewState()
	s.ApplyAcquired("walletA", []Coord{{1, 1}})
	s.ApplyAcquired("walletB", []Coord{{2, 2}})

	n := s.ApplyColors("walletA", []ColorChange{
		{X: 1, Y: 1, Color: 0xff0000},
		{X: 2, Y: 2, Color: 0xff0000},
	})
	if n != 1 {
		t.Fatalf("expected 1 repaint, got %d", n)
	}
	snap := s.Snapshot()
	if snap.Colors[Coord{2, 2}.Index()] != White {
		t.Error("walletA must not repaint walletB's cell")
	}

	if cleared := s.ClearColors("walletA"); cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}
	if got := s.ApplyColors("nobody", []ColorChange{{X: 1, Y: 1, Color: 1}}); got != 0 {
		t.Errorf("unknown wallet must not repaint, got %d", got)
	}
}

func TestEncodeDecodeCells(t *testing.T) {
	cells := []Cell{
		{X: 0, Y: 0, Owner: "walletA", Color: White},
		{X: 999, Y: 998, Owner: "walletB", Color: 0x00ff00},
		{X: 10, Y: 10, Owner: "walletA", Color: 0x123456},
	}
	data, err := EncodeCells(42, cells)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	version, got, err := DecodeCells(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if version != 42 {
		t.Errorf("expected version 42, got %d", version)
	}
	if len(got) != len(cells) {
		t.Fatalf("expected %d cells, got %d", len(cells), len(got))
	}
	for i := range cells {
		if got[i] != cells[i] {
			t.Errorf("cell %d: expected %+v, got %+v", i, cells[i], got[i])
		}
	}

	if _, _, err := DecodeCells([]byte("not lz4")); err == nil {
		t.Error("expected error for corrupt payload")
	}
}
