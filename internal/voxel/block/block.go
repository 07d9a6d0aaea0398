package block

import (
	"fmt"

	"voxelmesh.ai/internal/voxel/voxeldata"
)

// Well-known block ids. The catalog guarantees AIR is palette id 0; WATER is
// pinned so the water layer predicate does not depend on catalog order.
const (
	Air   uint16 = 0
	Water uint16 = 1
)

// Rotation turns a block's texture in 90 degree steps.
type Rotation uint8

const (
	Identity Rotation = iota
	Rot90
	Rot180
	Rot270
)

func (r Rotation) Valid() bool { return r <= Rot270 }

func (r Rotation) String() string {
	switch r {
	case Identity:
		return "IDENTITY"
	case Rot90:
		return "ROT90"
	case Rot180:
		return "ROT180"
	case Rot270:
		return "ROT270"
	default:
		return fmt.Sprintf("Rotation(%d)", uint8(r))
	}
}

// Data is one voxel. It is a value: edits replace it wholesale.
type Data struct {
	ID       uint16
	Solid    bool
	Rotation Rotation
	Textures [voxeldata.FaceCount]int
}

// TextureID returns the atlas tile for the given face.
func (d Data) TextureID(face int) int {
	return d.Textures[face]
}

// New builds a block with the same texture on all faces.
func New(id uint16, solid bool, texture int) Data {
	d := Data{ID: id, Solid: solid}
	for i := range d.Textures {
		d.Textures[i] = texture
	}
	return d
}

// WithRotation returns a copy of d turned by r.
func (d Data) WithRotation(r Rotation) Data {
	d.Rotation = r
	return d
}

func (d Data) IsAir() bool { return d.ID == Air }
