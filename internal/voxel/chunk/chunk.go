// Package chunk owns one chunk's blocks and mesh, and keeps the meshes of
// neighbouring chunks consistent when a voxel is edited.
package chunk

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/mathx"
	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/chunkdata"
	"voxelmesh.ai/internal/voxel/meshdata"
	"voxelmesh.ai/internal/voxel/mesher"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

var ErrOutOfBounds = errors.New("voxel outside chunk")

// Oracle is the host's view of the world. All positions are integer world
// coordinates. Chunks call back into it while they are being built or
// edited, so implementations must not hold a lock that those calls need.
type Oracle interface {
	HeightAt(x, z int) int
	ClassifyBlock(pos voxeldata.Offset, columnHeight int) block.Data
	IsInsideWorld(pos voxeldata.Offset) bool
	// ResolveChunk returns the chunk of the given layer that owns pos, or
	// nil when it has not been generated.
	ResolveChunk(pos voxeldata.Offset, t chunkdata.Type) *Chunk
}

// MeshListener is an optional Oracle extension notified after every mesh
// build, synchronously.
type MeshListener interface {
	MeshBuilt(c *Chunk, cause BuildCause)
}

type BuildCause uint8

const (
	BuildInitial BuildCause = iota
	BuildManual
	BuildEdit
	BuildNeighbor
)

func (b BuildCause) String() string {
	switch b {
	case BuildInitial:
		return "INITIAL"
	case BuildManual:
		return "MANUAL"
	case BuildEdit:
		return "EDIT"
	case BuildNeighbor:
		return "NEIGHBOR"
	default:
		return fmt.Sprintf("BuildCause(%d)", uint8(b))
	}
}

type State uint8

const (
	StateUnpopulated State = iota
	StatePopulated
	StateMeshBuilt
)

type Chunk struct {
	data   *chunkdata.ChunkData
	oracle Oracle
	origin voxeldata.Offset

	state    State
	active   bool
	mesh     meshdata.Mesh
	revision uint64
}

// New populates the chunk from the oracle and builds its first mesh.
// oracle must not be nil.
func New(coord chunkdata.Coord, t chunkdata.Type, oracle Oracle) *Chunk {
	c := &Chunk{
		data:   chunkdata.New(coord, t),
		oracle: oracle,
		origin: voxeldata.Offset{coord.X * voxeldata.ChunkWidth, 0, coord.Z * voxeldata.ChunkLength},
		active: true,
	}
	c.populate()
	c.rebuild(BuildInitial)
	return c
}

func (c *Chunk) Data() *chunkdata.ChunkData { return c.data }
func (c *Chunk) Coord() chunkdata.Coord     { return c.data.Coord }
func (c *Chunk) Type() chunkdata.Type       { return c.data.Type }
func (c *Chunk) State() State               { return c.state }
func (c *Chunk) Name() string               { return "Chunk " + c.data.Coord.String() }

// Origin is the world coordinate of local voxel (0,0,0).
func (c *Chunk) Origin() voxeldata.Offset { return c.origin }

func (c *Chunk) Position() mgl32.Vec3 { return c.origin.Vec3() }

func (c *Chunk) IsActive() bool    { return c.active }
func (c *Chunk) SetActive(on bool) { c.active = on }

// Mesh returns the buffers of the latest build. Callers must not modify them.
func (c *Chunk) Mesh() meshdata.Mesh { return c.mesh }

// Revision counts mesh builds since construction.
func (c *Chunk) Revision() uint64 { return c.revision }

// Block returns the block at a chunk-local coordinate.
func (c *Chunk) Block(x, y, z int) (block.Data, error) {
	if !voxeldata.InChunk(x, y, z) {
		return block.Data{}, fmt.Errorf("%w: local (%d,%d,%d) in %s", ErrOutOfBounds, x, y, z, c.Name())
	}
	return c.data.Block(x, y, z), nil
}

func (c *Chunk) populate() {
	for x := 0; x < voxeldata.ChunkWidth; x++ {
		for z := 0; z < voxeldata.ChunkLength; z++ {
			c.data.Heights[x][z] = c.oracle.HeightAt(c.origin[0]+x, c.origin[2]+z)
		}
	}
	for y := 0; y < voxeldata.ChunkHeight; y++ {
		for x := 0; x < voxeldata.ChunkWidth; x++ {
			for z := 0; z < voxeldata.ChunkLength; z++ {
				pos := c.origin.Add(voxeldata.Offset{x, y, z})
				c.data.Blocks[x][y][z] = c.oracle.ClassifyBlock(pos, c.data.Heights[x][z])
			}
		}
	}
	c.state = StatePopulated
}

// BuildMesh regenerates the whole mesh, replacing the previous one.
func (c *Chunk) BuildMesh() {
	c.rebuild(BuildManual)
}

func (c *Chunk) rebuild(cause BuildCause) {
	c.mesh = mesher.Generate(c).Mesh()
	c.revision++
	c.state = StateMeshBuilt
	if l, ok := c.oracle.(MeshListener); ok {
		l.MeshBuilt(c, cause)
	}
}

// EditVoxel replaces the block at a world position inside this chunk, then
// rebuilds this chunk and every loaded neighbour sharing a face with the
// edited voxel. A position outside the chunk fails before anything changes.
func (c *Chunk) EditVoxel(worldPos mgl32.Vec3, b block.Data) error {
	gx := int(math.Floor(float64(worldPos.X())))
	gy := int(math.Floor(float64(worldPos.Y())))
	gz := int(math.Floor(float64(worldPos.Z())))

	x := gx - c.origin[0]
	y := gy
	z := gz - c.origin[2]
	if !voxeldata.InChunk(x, y, z) {
		return fmt.Errorf("%w: world (%d,%d,%d) maps to local (%d,%d,%d) in %s",
			ErrOutOfBounds, gx, gy, gz, x, y, z, c.Name())
	}

	c.data.SetBlock(x, y, z, b)
	c.rebuild(BuildEdit)
	c.updateSurroundingVoxels(voxeldata.Offset{x, y, z})
	return nil
}

func (c *Chunk) updateSurroundingVoxels(local voxeldata.Offset) {
	for _, off := range voxeldata.FaceChecks {
		n := local.Add(off)
		if voxeldata.InChunk(n[0], n[1], n[2]) {
			continue
		}
		world := c.origin.Add(n)
		if !c.oracle.IsInsideWorld(world) {
			continue
		}
		if other := c.oracle.ResolveChunk(world, c.data.Type); other != nil && other != c {
			other.rebuild(BuildNeighbor)
		}
	}
}

// IsBlockSolid reports whether the voxel at pos, relative to this chunk's
// origin, hides faces of this chunk's layer. Positions past the chunk edge
// are looked up in the neighbouring chunk of the same layer; anything
// outside the world or in a chunk that is not loaded is not solid.
func (c *Chunk) IsBlockSolid(pos voxeldata.Offset) bool {
	if voxeldata.InChunk(pos[0], pos[1], pos[2]) {
		return c.data.IsSolid(pos[0], pos[1], pos[2])
	}

	world := c.origin.Add(pos)
	if !c.oracle.IsInsideWorld(world) {
		return false
	}
	x := mathx.Mod(world[0], voxeldata.ChunkWidth)
	y := world[1]
	z := mathx.Mod(world[2], voxeldata.ChunkLength)
	if !voxeldata.InChunk(x, y, z) {
		return false
	}

	other := c.oracle.ResolveChunk(world, c.data.Type)
	if other == nil {
		return false
	}
	return other.data.IsSolid(x, y, z)
}
