// Package gen is a deterministic hash-based terrain oracle: column heights
// from value noise over a coarse lattice and a layered material profile.
package gen

import (
	"fmt"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/mathx"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

// LatticeSize is the spacing of the noise lattice in blocks.
const LatticeSize = 8

type Materials struct {
	Bedrock block.Data
	Stone   block.Data
	Dirt    block.Data
	Grass   block.Data
	Sand    block.Data
	Water   block.Data
}

func MaterialsFrom(c *catalogs.BlockCatalog) (Materials, error) {
	var m Materials
	for _, e := range []struct {
		name string
		dst  *block.Data
	}{
		{"BEDROCK", &m.Bedrock},
		{"STONE", &m.Stone},
		{"DIRT", &m.Dirt},
		{"GRASS", &m.Grass},
		{"SAND", &m.Sand},
		{catalogs.WaterID, &m.Water},
	} {
		b, ok := c.Block(e.name)
		if !ok {
			return m, fmt.Errorf("terrain: block %s not in catalog", e.name)
		}
		*e.dst = b
	}
	return m, nil
}

type Generator struct {
	cfg tuning.Tuning
	mat Materials
}

func New(cfg tuning.Tuning, mat Materials) *Generator {
	return &Generator{cfg: cfg, mat: mat}
}

// HeightAt returns the column height at world (x, z): the number of filled
// blocks above y=0, clamped to [1, ChunkHeight-1].
func (g *Generator) HeightAt(x, z int) int {
	h := g.cfg.BaseHeight
	if g.cfg.HeightVariation > 0 {
		n := g.noise(x, z) // [0, 1024]
		span := 2*g.cfg.HeightVariation + 1
		h += n*span/1025 - g.cfg.HeightVariation
	}
	if h < 1 {
		h = 1
	}
	if h > voxeldata.ChunkHeight-1 {
		h = voxeldata.ChunkHeight - 1
	}
	return h
}

// noise bilinearly interpolates lattice hashes; result in [0, 1024].
func (g *Generator) noise(x, z int) int {
	gx, gz := mathx.FloorDiv(x, LatticeSize), mathx.FloorDiv(z, LatticeSize)
	fx, fz := mathx.Mod(x, LatticeSize), mathx.Mod(z, LatticeSize)

	corner := func(cx, cz int) int { return int(mathx.Hash2(g.cfg.Seed, cx, cz) % 1025) }
	v00 := corner(gx, gz)
	v10 := corner(gx+1, gz)
	v01 := corner(gx, gz+1)
	v11 := corner(gx+1, gz+1)

	top := v00*(LatticeSize-fx) + v10*fx
	bot := v01*(LatticeSize-fx) + v11*fx
	return (top*(LatticeSize-fz) + bot*fz) / (LatticeSize * LatticeSize)
}

// Classify picks the block at world y for a column of the given height.
func (g *Generator) Classify(y, columnHeight int) block.Data {
	switch {
	case y < 0:
		return block.Data{}
	case y == 0:
		return g.mat.Bedrock
	case y < columnHeight-g.cfg.DirtDepth:
		return g.mat.Stone
	case y < columnHeight-1:
		return g.mat.Dirt
	case y == columnHeight-1:
		if columnHeight-1 <= g.cfg.SeaLevel {
			return g.mat.Sand
		}
		return g.mat.Grass
	case y < g.cfg.SeaLevel:
		return g.mat.Water
	default:
		return block.Data{}
	}
}
