// Package voxeldata holds the constant lookup tables shared by the mesher:
// chunk dimensions, cube geometry and texture atlas layout.
package voxeldata

import "github.com/go-gl/mathgl/mgl32"

const (
	ChunkWidth  = 16
	ChunkHeight = 16
	ChunkLength = 16

	FaceCount     = 6
	VerticesCount = 4

	// Atlas is a grid of square tiles, ids are assigned row by row from the top-left.
	TextureAtlasSizeInBlocksX = 16
	TextureAtlasSizeInBlocksY = 16

	NormalizedBlockTextureSizeX = 1.0 / float32(TextureAtlasSizeInBlocksX)
	NormalizedBlockTextureSizeY = 1.0 / float32(TextureAtlasSizeInBlocksY)
)

// Face indices. The order matches FaceChecks and VoxelTris.
const (
	FaceBack = iota
	FaceFront
	FaceTop
	FaceBottom
	FaceLeft
	FaceRight
)

// Offset is an integer step in voxel space.
type Offset [3]int

func (o Offset) Add(p Offset) Offset {
	return Offset{o[0] + p[0], o[1] + p[1], o[2] + p[2]}
}

func (o Offset) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
}

var FaceChecks = [FaceCount]Offset{
	{0, 0, -1},
	{0, 0, 1},
	{0, 1, 0},
	{0, -1, 0},
	{-1, 0, 0},
	{1, 0, 0},
}

var VoxelVerts = [8]mgl32.Vec3{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{1, 1, 1},
	{0, 1, 1},
}

// VoxelTris lists the four corners of each face as
// bottom-left, top-left, bottom-right, top-right seen from outside the cube.
var VoxelTris = [FaceCount][VerticesCount]int{
	{0, 3, 1, 2},
	{5, 6, 4, 7},
	{3, 7, 2, 6},
	{1, 5, 0, 4},
	{4, 7, 0, 3},
	{1, 2, 5, 6},
}

// InChunk reports whether a chunk-local coordinate lies inside one chunk.
func InChunk(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth &&
		y >= 0 && y < ChunkHeight &&
		z >= 0 && z < ChunkLength
}
