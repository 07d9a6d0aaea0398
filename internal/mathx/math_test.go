package mathx

import "testing"

func TestModWrapsNegatives(t *testing.T) {
	const width = 16
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero", 0, 0},
		{"inside", 5, 5},
		{"last", width - 1, width - 1},
		{"width", width, 0},
		{"minus one", -1, width - 1},
		{"minus width", -width, 0},
		{"minus width minus one", -width - 1, width - 1},
		{"far negative", -3*width + 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mod(tt.in, width); got != tt.want {
				t.Fatalf("Mod(%d, %d)=%d want %d", tt.in, width, got, tt.want)
			}
		})
	}
}

func TestModMultiplesAreZero(t *testing.T) {
	for k := -5; k <= 5; k++ {
		if got := Mod(k*16, 16); got != 0 {
			t.Fatalf("Mod(%d, 16)=%d want 0", k*16, got)
		}
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, want int }{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 1},
		{-1, 16, -1},
		{-16, 16, -1},
		{-17, 16, -2},
	}
	for _, tt := range tests {
		if got := FloorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("FloorDiv(%d,%d)=%d want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(7, -3, 9) != Hash2(7, -3, 9) {
		t.Fatalf("hash not deterministic")
	}
	if Hash2(7, -3, 9) == Hash2(8, -3, 9) {
		t.Fatalf("seed does not affect hash")
	}
}
