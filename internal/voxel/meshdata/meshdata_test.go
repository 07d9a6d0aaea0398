package meshdata

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

func addQuad(m *MeshData, b block.Data, face int) {
	for i := 0; i < voxeldata.VerticesCount; i++ {
		m.AddVertex(voxeldata.VoxelVerts[voxeldata.VoxelTris[face][i]])
	}
	m.AddFace(b, face)
}

func TestAddFaceBufferInvariants(t *testing.T) {
	m := New()
	b := block.New(2, true, 3)
	for i := 0; i < 10; i++ {
		addQuad(m, b, i%voxeldata.FaceCount)
		if len(m.Triangles) != 6*len(m.Vertices)/4 {
			t.Fatalf("after %d faces: triangles=%d vertices=%d", i+1, len(m.Triangles), len(m.Vertices))
		}
		if len(m.UVs) != len(m.Vertices) {
			t.Fatalf("after %d faces: uvs=%d vertices=%d", i+1, len(m.UVs), len(m.Vertices))
		}
		if m.VertexIndex() != uint32(4*(i+1)) {
			t.Fatalf("vertex index=%d want %d", m.VertexIndex(), 4*(i+1))
		}
	}
	if m.FaceCount() != 10 {
		t.Fatalf("FaceCount=%d want 10", m.FaceCount())
	}
}

func TestTriangleWinding(t *testing.T) {
	m := New()
	b := block.New(2, true, 0)
	addQuad(m, b, 0)
	addQuad(m, b, 1)

	want := []uint32{0, 1, 2, 2, 1, 3, 4, 5, 6, 6, 5, 7}
	if len(m.Triangles) != len(want) {
		t.Fatalf("triangles=%v", m.Triangles)
	}
	for i := range want {
		if m.Triangles[i] != want[i] {
			t.Fatalf("triangles=%v want %v", m.Triangles, want)
		}
	}
}

func TestTileUVsOrigin(t *testing.T) {
	w := voxeldata.NormalizedBlockTextureSizeX
	h := voxeldata.NormalizedBlockTextureSizeY

	// Tile 0 is the top-left tile of the atlas.
	uv := TileUVs(0)
	if !uv[0].ApproxEqual(mgl32.Vec2{UVInset, 1 - h + UVInset}) {
		t.Fatalf("tile 0 bottom-left=%v", uv[0])
	}
	if !uv[3].ApproxEqual(mgl32.Vec2{w - UVInset, 1 - UVInset}) {
		t.Fatalf("tile 0 top-right=%v", uv[3])
	}

	// First tile of the second row.
	uv = TileUVs(voxeldata.TextureAtlasSizeInBlocksX)
	if !uv[0].ApproxEqual(mgl32.Vec2{UVInset, 1 - 2*h + UVInset}) {
		t.Fatalf("row 1 bottom-left=%v", uv[0])
	}

	// Column offset.
	uv = TileUVs(3)
	if !uv[1].ApproxEqual(mgl32.Vec2{3*w + UVInset, 1 - UVInset}) {
		t.Fatalf("tile 3 top-left=%v", uv[1])
	}
}

func TestTileUVsCornerOrder(t *testing.T) {
	uv := TileUVs(37)
	bl, tl, br, tr := uv[0], uv[1], uv[2], uv[3]
	if bl.X() != tl.X() || br.X() != tr.X() || bl.X() >= br.X() {
		t.Fatalf("unexpected x layout: %v", uv)
	}
	if bl.Y() != br.Y() || tl.Y() != tr.Y() || bl.Y() >= tl.Y() {
		t.Fatalf("unexpected y layout: %v", uv)
	}
}

func TestRotationIdentityIsCanonical(t *testing.T) {
	m := New()
	addQuad(m, block.New(2, true, 7), 2)
	canon := TileUVs(7)
	for i := range canon {
		if m.UVs[i] != canon[i] {
			t.Fatalf("corner %d=%v want %v", i, m.UVs[i], canon[i])
		}
	}
}

func TestRotationsArePermutations(t *testing.T) {
	canon := TileUVs(7)
	for r := block.Rot90; r <= block.Rot270; r++ {
		m := New()
		addQuad(m, block.New(2, true, 7).WithRotation(r), 2)

		seen := map[mgl32.Vec2]int{}
		for _, uv := range m.UVs {
			seen[uv]++
		}
		if len(seen) != 4 {
			t.Fatalf("%v: expected 4 distinct corners, got %v", r, m.UVs)
		}
		for _, c := range canon {
			if seen[c] != 1 {
				t.Fatalf("%v: corner %v appears %d times", r, c, seen[c])
			}
		}
		same := true
		for i := range canon {
			if m.UVs[i] != canon[i] {
				same = false
			}
		}
		if same {
			t.Fatalf("%v: rotation produced identity order", r)
		}
	}
}

func TestRotationTable(t *testing.T) {
	canon := TileUVs(0)
	m := New()
	addQuad(m, block.New(2, true, 0).WithRotation(block.Rot90), 0)
	want := []mgl32.Vec2{canon[1], canon[3], canon[0], canon[2]}
	for i := range want {
		if m.UVs[i] != want[i] {
			t.Fatalf("rot90 corner %d=%v want %v", i, m.UVs[i], want[i])
		}
	}
}

func TestMeshCopiesBuffers(t *testing.T) {
	m := New()
	addQuad(m, block.New(2, true, 0), 0)
	out := m.Mesh()
	m.Vertices[0] = mgl32.Vec3{9, 9, 9}
	if out.Vertices[0] == (mgl32.Vec3{9, 9, 9}) {
		t.Fatalf("Mesh() must not alias builder buffers")
	}
	if out.FaceCount() != 1 || out.Empty() {
		t.Fatalf("FaceCount=%d", out.FaceCount())
	}
}
