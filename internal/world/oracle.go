package world

import (
	"voxelmesh.ai/internal/mathx"
	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/chunk"
	"voxelmesh.ai/internal/voxel/chunkdata"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

var _ chunk.Oracle = (*Map)(nil)
var _ chunk.MeshListener = (*Map)(nil)

func (m *Map) HeightAt(x, z int) int { return m.terr.HeightAt(x, z) }

func (m *Map) ClassifyBlock(pos voxeldata.Offset, columnHeight int) block.Data {
	return m.terr.Classify(pos[1], columnHeight)
}

// IsInsideWorld reports whether pos lies in a chunk within the world radius.
func (m *Map) IsInsideWorld(pos voxeldata.Offset) bool {
	if pos[1] < 0 || pos[1] >= voxeldata.ChunkHeight {
		return false
	}
	c := ChunkCoordOf(pos)
	r := m.cfg.WorldRadiusChunks
	return c.X >= -r && c.X < r && c.Z >= -r && c.Z < r
}

// ResolveChunk reads the chunk registry without locking; it is only called
// by chunks while a Map operation holds mu.
func (m *Map) ResolveChunk(pos voxeldata.Offset, t chunkdata.Type) *chunk.Chunk {
	return m.chunks[ChunkKey{Coord: ChunkCoordOf(pos), Type: t}]
}

// ChunkCoordOf maps a world voxel position to the coordinate of its chunk.
func ChunkCoordOf(pos voxeldata.Offset) chunkdata.Coord {
	return chunkdata.Coord{
		X: mathx.FloorDiv(pos[0], voxeldata.ChunkWidth),
		Z: mathx.FloorDiv(pos[2], voxeldata.ChunkLength),
	}
}
