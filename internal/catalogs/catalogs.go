package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

const (
	AirID   = "AIR"
	WaterID = "WATER"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

// BlockDef is one entry of blocks.json. Texture applies to every face unless
// Top, Bottom or Side override it.
type BlockDef struct {
	ID      string `json:"id"`
	Solid   bool   `json:"solid"`
	Texture int    `json:"texture"`
	Top     *int   `json:"top,omitempty"`
	Bottom  *int   `json:"bottom,omitempty"`
	Side    *int   `json:"side,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ParseBlocks(raw, out)
}

// ParseBlocks builds the palette from raw blocks.json. AIR and WATER are
// pinned to their well-known ids; every other block follows in name order.
func ParseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		for _, tex := range []int{d.Texture, deref(d.Top, 0), deref(d.Bottom, 0), deref(d.Side, 0)} {
			if tex < 0 || tex >= voxeldata.TextureAtlasSizeInBlocksX*voxeldata.TextureAtlasSizeInBlocksY {
				return fmt.Errorf("blocks.json: %s: texture %d outside atlas", d.ID, tex)
			}
		}
		out.Defs[d.ID] = d
	}

	if _, ok := out.Defs[AirID]; !ok {
		return fmt.Errorf("blocks.json: missing %s", AirID)
	}
	if _, ok := out.Defs[WaterID]; !ok {
		return fmt.Errorf("blocks.json: missing %s", WaterID)
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id == AirID || id == WaterID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ids = append([]string{AirID, WaterID}, ids...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Block returns the voxel value for a named block.
func (c *BlockCatalog) Block(name string) (block.Data, bool) {
	id, ok := c.Index[name]
	if !ok {
		return block.Data{}, false
	}
	return c.ByID(id), true
}

// ByID returns the voxel value for a palette id; unknown ids are air.
func (c *BlockCatalog) ByID(id uint16) block.Data {
	if int(id) >= len(c.Palette) {
		return block.Data{}
	}
	d := c.Defs[c.Palette[id]]
	b := block.New(id, d.Solid && id != block.Air, d.Texture)
	b.Textures[voxeldata.FaceTop] = deref(d.Top, d.Texture)
	b.Textures[voxeldata.FaceBottom] = deref(d.Bottom, d.Texture)
	side := deref(d.Side, d.Texture)
	for _, f := range []int{voxeldata.FaceBack, voxeldata.FaceFront, voxeldata.FaceLeft, voxeldata.FaceRight} {
		b.Textures[f] = side
	}
	return b
}

func (c *BlockCatalog) Name(id uint16) string {
	if int(id) >= len(c.Palette) {
		return ""
	}
	return c.Palette[id]
}
