package chunkdata

import (
	"fmt"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

// Type selects which blocks a chunk renders.
type Type uint8

const (
	Ground Type = iota
	Water
)

func (t Type) String() string {
	switch t {
	case Ground:
		return "GROUND"
	case Water:
		return "WATER"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, bool) {
	switch s {
	case "GROUND":
		return Ground, true
	case "WATER":
		return Water, true
	default:
		return 0, false
	}
}

// Renders reports whether a block of this layer produces faces: solid blocks
// for ground chunks, water blocks for water chunks.
func (t Type) Renders(b block.Data) bool {
	switch t {
	case Ground:
		return b.Solid
	case Water:
		return b.ID == block.Water
	default:
		return false
	}
}

// Coord is a chunk-grid coordinate on the horizontal plane.
type Coord struct {
	X int
	Z int
}

func (c Coord) String() string { return fmt.Sprintf("%d.%d", c.X, c.Z) }

// ChunkData is the dense storage behind one chunk. Blocks are indexed
// [x][y][z] in chunk-local coordinates.
type ChunkData struct {
	Coord Coord
	Type  Type

	Blocks  [voxeldata.ChunkWidth][voxeldata.ChunkHeight][voxeldata.ChunkLength]block.Data
	Heights [voxeldata.ChunkWidth][voxeldata.ChunkLength]int
}

func New(coord Coord, t Type) *ChunkData {
	return &ChunkData{Coord: coord, Type: t}
}

func (d *ChunkData) Block(x, y, z int) block.Data {
	return d.Blocks[x][y][z]
}

func (d *ChunkData) SetBlock(x, y, z int, b block.Data) {
	d.Blocks[x][y][z] = b
}

// IsSolid is the raw in-bounds solidity check: not air and accepted by the
// layer's render predicate.
func (d *ChunkData) IsSolid(x, y, z int) bool {
	b := d.Blocks[x][y][z]
	return !b.IsAir() && d.Type.Renders(b)
}
