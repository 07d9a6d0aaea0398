package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

var (
	ErrUnknownBlock    = errors.New("unknown block")
	ErrInvalidRotation = errors.New("invalid rotation")
	ErrOutsideWorld    = errors.New("position outside world")
	ErrNotLoaded       = errors.New("chunk not loaded")
)

// EditVoxel places a catalog block at a world position. The block is
// written to the owning chunk of every layer so each layer's render
// predicate sees the same voxel.
func (m *Map) EditVoxel(worldPos mgl32.Vec3, blockName string, rot block.Rotation) error {
	err := m.editVoxel(worldPos, blockName, rot)
	if err != nil {
		m.metrics.editsRejected.Inc()
		return err
	}
	m.metrics.edits.Inc()
	return nil
}

func (m *Map) editVoxel(worldPos mgl32.Vec3, blockName string, rot block.Rotation) error {
	b, ok := m.cats.Blocks.Block(blockName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlock, blockName)
	}
	if !rot.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRotation, rot)
	}
	b = b.WithRotation(rot)

	pos := voxeldata.Offset{
		int(math.Floor(float64(worldPos.X()))),
		int(math.Floor(float64(worldPos.Y()))),
		int(math.Floor(float64(worldPos.Z()))),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.IsInsideWorld(pos) {
		return fmt.Errorf("%w: (%d,%d,%d)", ErrOutsideWorld, pos[0], pos[1], pos[2])
	}
	layers := m.Layers()
	for _, t := range layers {
		if m.ResolveChunk(pos, t) == nil {
			return fmt.Errorf("%w: %s", ErrNotLoaded, ChunkKey{Coord: ChunkCoordOf(pos), Type: t})
		}
	}
	for _, t := range layers {
		if err := m.ResolveChunk(pos, t).EditVoxel(worldPos, b); err != nil {
			return err
		}
	}
	m.logger.Printf("edit %s at (%d,%d,%d) rot=%s", blockName, pos[0], pos[1], pos[2], rot)
	return nil
}
