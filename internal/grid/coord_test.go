package grid

import "testing"

func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	in := []Coord{{1, 1}, {2, 2}, {1, 1}, {3, 3}, {2, 2}}
	got := Dedup(in)
	want := []Coord{{1, 1}, {2, 2}, {3, 3}}
	if len(got) != len(want) {
		t.Fatalf("expected %d coords, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestCoord_Valid(t *testing.T) {
	tests := []struct {
		c    Coord
		want bool
	}{
		{Coord{0, 0}, true},
		{Coord{999, 999}, true},
		{Coord{-1, 0}, false},
		{Coord{0, 1000}, false},
		{Coord{1000, 5}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestCoordAt_InvertsIndex(t *testing.T) {
	c := Coord{X: 417, Y: 23}
	if got := CoordAt(c.Index()); got != c {
		t.Errorf("expected %v, got %v", c, got)
	}
}

func TestRect_Valid(t *testing.T) {
	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"unit", Rect{0, 0, 1, 1}, true},
		{"full grid", Rect{0, 0, Size, Size}, true},
		{"zero width", Rect{0, 0, 0, 4}, false},
		{"negative origin", Rect{-1, 0, 2, 2}, false},
		{"overflows right", Rect{998, 0, 3, 1}, false},
		{"overflows bottom", Rect{0, 999, 1, 2}, false},
		{"huge values wrap", Rect{1 << 62, 1 << 62, 1 << 62, 1 << 62}, false},
		{"huge width", Rect{10, 0, 1<<63 - 1, 1}, false},
		{"huge height", Rect{0, 10, 1, 1<<63 - 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRect_AreaAndContains(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 3, Height: 2}
	if got := r.Area(); got != 6 {
		t.Errorf("Area() = %d, want 6", got)
	}
	if !r.Contains(Coord{X: 12, Y: 21}) || r.Contains(Coord{X: 13, Y: 21}) {
		t.Error("Contains disagrees with the rectangle bounds")
	}

	huge := Rect{1 << 62, 1 << 62, 1 << 62, 1 << 62}
	if got := huge.Area(); got != 0 {
		t.Errorf("Area() of an off-grid rect = %d, want 0", got)
	}
	if huge.Contains(Coord{X: 0, Y: 0}) {
		t.Error("off-grid rect contains the origin")
	}
}

func TestRect_Clamp(t *testing.T) {
	r := Rect{X: 995, Y: -4, Width: 20, Height: 0}.Clamp()
	want := Rect{X: 980, Y: 0, Width: 20, Height: 1}
	if r != want {
		t.Errorf("expected %+v, got %+v", want, r)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF5a36")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Hex() != "#ff5a36" {
		t.Errorf("expected #ff5a36, got %s", c.Hex())
	}
	r, g, b := c.RGB()
	if r != 0xff || g != 0x5a || b != 0x36 {
		t.Errorf("unexpected components %d %d %d", r, g, b)
	}

	for _, bad := range []string{"", "ff5a36", "#ff5a3", "#gg0000", "#ff5a366"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
