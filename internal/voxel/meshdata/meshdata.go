// Package meshdata accumulates the vertex, triangle and UV buffers of a chunk
// mesh. Vertices are appended by the caller, four per face, before AddFace is
// called for that face.
package meshdata

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

// UVInset shrinks every tile on all four edges so linear filtering never
// samples the neighbouring atlas tile.
const UVInset float32 = 0.003

// uvRotation maps output corner -> source corner for each rotation. Corners
// are bottom-left, top-left, bottom-right, top-right.
var uvRotation = [4][4]int{
	block.Identity: {0, 1, 2, 3},
	block.Rot90:    {1, 3, 0, 2},
	block.Rot180:   {3, 2, 1, 0},
	block.Rot270:   {2, 0, 3, 1},
}

// MeshData is not safe for concurrent use.
type MeshData struct {
	Vertices  []mgl32.Vec3
	Triangles []uint32
	UVs       []mgl32.Vec2

	vertexIndex uint32
}

func New() *MeshData {
	return &MeshData{}
}

// VertexIndex is the index the next face's first vertex will get.
func (m *MeshData) VertexIndex() uint32 { return m.vertexIndex }

// FaceCount returns the number of faces added so far.
func (m *MeshData) FaceCount() int { return int(m.vertexIndex / voxeldata.VerticesCount) }

// AddVertex appends one corner position of the face being emitted.
func (m *MeshData) AddVertex(v mgl32.Vec3) {
	m.Vertices = append(m.Vertices, v)
}

// AddFace records UVs and the two triangles for a face whose four vertices
// were just appended.
func (m *MeshData) AddFace(b block.Data, face int) {
	m.addTexture(b.TextureID(face), b.Rotation)

	v := m.vertexIndex
	m.Triangles = append(m.Triangles,
		v, v+1, v+2,
		v+2, v+1, v+3,
	)
	m.vertexIndex += voxeldata.VerticesCount
}

func (m *MeshData) addTexture(textureID int, rot block.Rotation) {
	corners := TileUVs(textureID)
	perm := uvRotation[block.Identity]
	if rot.Valid() {
		perm = uvRotation[rot]
	}
	for _, src := range perm {
		m.UVs = append(m.UVs, corners[src])
	}
}

// TileUVs returns the inset corners of an atlas tile in the order
// bottom-left, top-left, bottom-right, top-right. Atlas rows count from the
// top while UV space starts at the bottom-left.
func TileUVs(textureID int) [4]mgl32.Vec2 {
	col := textureID % voxeldata.TextureAtlasSizeInBlocksX
	row := textureID / voxeldata.TextureAtlasSizeInBlocksX

	w := voxeldata.NormalizedBlockTextureSizeX
	h := voxeldata.NormalizedBlockTextureSizeY
	x := float32(col) * w
	y := 1 - float32(row)*h - h

	return [4]mgl32.Vec2{
		{x + UVInset, y + UVInset},
		{x + UVInset, y + h - UVInset},
		{x + w - UVInset, y + UVInset},
		{x + w - UVInset, y + h - UVInset},
	}
}

// Mesh is the finished, immutable output handed to the renderer.
type Mesh struct {
	Vertices  []mgl32.Vec3
	Triangles []uint32
	UVs       []mgl32.Vec2
}

// Mesh copies the accumulated buffers.
func (m *MeshData) Mesh() Mesh {
	out := Mesh{
		Vertices:  make([]mgl32.Vec3, len(m.Vertices)),
		Triangles: make([]uint32, len(m.Triangles)),
		UVs:       make([]mgl32.Vec2, len(m.UVs)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Triangles, m.Triangles)
	copy(out.UVs, m.UVs)
	return out
}

func (m Mesh) FaceCount() int { return len(m.Vertices) / voxeldata.VerticesCount }

func (m Mesh) Empty() bool { return len(m.Vertices) == 0 }
