package block

import "testing"

func TestNewUsesTextureOnEveryFace(t *testing.T) {
	b := New(4, true, 19)
	for face := 0; face < len(b.Textures); face++ {
		if got := b.TextureID(face); got != 19 {
			t.Fatalf("face %d texture=%d want 19", face, got)
		}
	}
	if b.Rotation != Identity {
		t.Fatalf("rotation=%v want IDENTITY", b.Rotation)
	}
}

func TestWithRotationDoesNotMutateOriginal(t *testing.T) {
	b := New(4, true, 1)
	r := b.WithRotation(Rot180)
	if b.Rotation != Identity {
		t.Fatalf("original mutated: %v", b.Rotation)
	}
	if r.Rotation != Rot180 {
		t.Fatalf("rotation=%v want ROT180", r.Rotation)
	}
}

func TestRotationValid(t *testing.T) {
	for r := Identity; r <= Rot270; r++ {
		if !r.Valid() {
			t.Fatalf("%v should be valid", r)
		}
	}
	if Rotation(4).Valid() {
		t.Fatalf("Rotation(4) should be invalid")
	}
}
