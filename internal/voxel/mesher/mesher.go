package mesher

import (
	"voxelmesh.ai/internal/voxel/chunkdata"
	"voxelmesh.ai/internal/voxel/meshdata"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

// Source is what the generator needs from a chunk: its blocks, and a
// solidity query that may look past the chunk's own bounds.
type Source interface {
	Data() *chunkdata.ChunkData
	IsBlockSolid(pos voxeldata.Offset) bool
}

// Generate emits every visible face of the chunk. A face is visible when the
// voxel is rendered by the chunk's layer and the voxel across that face is
// not solid for the same layer. Voxels are visited y, then x, then z.
func Generate(src Source) *meshdata.MeshData {
	m := meshdata.New()
	data := src.Data()

	for y := 0; y < voxeldata.ChunkHeight; y++ {
		for x := 0; x < voxeldata.ChunkWidth; x++ {
			for z := 0; z < voxeldata.ChunkLength; z++ {
				if !data.Type.Renders(data.Blocks[x][y][z]) {
					continue
				}
				addVoxel(m, src, data, voxeldata.Offset{x, y, z})
			}
		}
	}
	return m
}

func addVoxel(m *meshdata.MeshData, src Source, data *chunkdata.ChunkData, pos voxeldata.Offset) {
	b := data.Blocks[pos[0]][pos[1]][pos[2]]
	base := pos.Vec3()

	for face := 0; face < voxeldata.FaceCount; face++ {
		if src.IsBlockSolid(pos.Add(voxeldata.FaceChecks[face])) {
			continue
		}
		for i := 0; i < voxeldata.VerticesCount; i++ {
			m.AddVertex(base.Add(voxeldata.VoxelVerts[voxeldata.VoxelTris[face][i]]))
		}
		m.AddFace(b, face)
	}
}
