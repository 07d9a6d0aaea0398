package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/voxeldata"
)

const sampleBlocks = `[
  {"id":"STONE","solid":true,"texture":0},
  {"id":"AIR","solid":false,"texture":0},
  {"id":"GRASS","solid":true,"texture":2,"top":1,"bottom":3},
  {"id":"WATER","solid":false,"texture":14}
]`

func TestParseBlocksPinsAirAndWater(t *testing.T) {
	var c BlockCatalog
	if err := ParseBlocks([]byte(sampleBlocks), &c); err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	want := []string{"AIR", "WATER", "GRASS", "STONE"}
	if len(c.Palette) != len(want) {
		t.Fatalf("palette=%v", c.Palette)
	}
	for i := range want {
		if c.Palette[i] != want[i] {
			t.Fatalf("palette=%v want %v", c.Palette, want)
		}
	}
	if c.Index["AIR"] != block.Air || c.Index["WATER"] != block.Water {
		t.Fatalf("air=%d water=%d", c.Index["AIR"], c.Index["WATER"])
	}
	if c.PaletteDigest == "" || c.DefsDigest == "" {
		t.Fatalf("digests not set")
	}
}

func TestBlockFaceTextures(t *testing.T) {
	var c BlockCatalog
	if err := ParseBlocks([]byte(sampleBlocks), &c); err != nil {
		t.Fatalf("ParseBlocks: %v", err)
	}
	g, ok := c.Block("GRASS")
	if !ok {
		t.Fatalf("GRASS missing")
	}
	if !g.Solid || g.ID != c.Index["GRASS"] {
		t.Fatalf("grass=%+v", g)
	}
	if g.TextureID(voxeldata.FaceTop) != 1 || g.TextureID(voxeldata.FaceBottom) != 3 {
		t.Fatalf("grass top/bottom textures=%v", g.Textures)
	}
	for _, f := range []int{voxeldata.FaceBack, voxeldata.FaceFront, voxeldata.FaceLeft, voxeldata.FaceRight} {
		if g.TextureID(f) != 2 {
			t.Fatalf("grass side %d texture=%d", f, g.TextureID(f))
		}
	}

	w, _ := c.Block("WATER")
	if w.Solid || w.ID != block.Water || w.TextureID(voxeldata.FaceTop) != 14 {
		t.Fatalf("water=%+v", w)
	}
	if _, ok := c.Block("LAVA"); ok {
		t.Fatalf("unknown block resolved")
	}
	if !c.ByID(999).IsAir() {
		t.Fatalf("unknown id should be air")
	}
}

func TestParseBlocksRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing air":   `[{"id":"WATER","texture":1}]`,
		"missing water": `[{"id":"AIR","texture":0}]`,
		"empty id":      `[{"id":"","texture":0}]`,
		"duplicate":     `[{"id":"AIR"},{"id":"WATER"},{"id":"AIR"}]`,
		"bad texture":   `[{"id":"AIR"},{"id":"WATER","texture":9999}]`,
		"not json":      `{`,
	}
	for name, raw := range cases {
		var c BlockCatalog
		if err := ParseBlocks([]byte(raw), &c); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadReadsConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(sampleBlocks), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Blocks.Name(c.Blocks.Index["STONE"]) != "STONE" {
		t.Fatalf("name lookup failed")
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing blocks.json")
	}
}

func TestShippedCatalogLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load configs: %v", err)
	}
	for _, name := range []string{"STONE", "DIRT", "GRASS", "SAND", "BEDROCK"} {
		if b, ok := c.Blocks.Block(name); !ok || !b.Solid {
			t.Fatalf("%s missing or not solid", name)
		}
	}
}
