package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// WorldRadiusChunks bounds the world to chunk coords in [-R, R) on both axes.
	WorldRadiusChunks int   `yaml:"world_radius_chunks"`
	Seed              int64 `yaml:"seed"`

	BaseHeight      int `yaml:"base_height"`
	HeightVariation int `yaml:"height_variation"`
	SeaLevel        int `yaml:"sea_level"`
	DirtDepth       int `yaml:"dirt_depth"`

	WaterLayer bool `yaml:"water_layer"`
}

func Defaults() Tuning {
	return Tuning{
		WorldRadiusChunks: 2,
		Seed:              1337,
		BaseHeight:        6,
		HeightVariation:   4,
		SeaLevel:          6,
		DirtDepth:         3,
		WaterLayer:        true,
	}
}

// Load reads a tuning file. Keys absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// LoadOrDefault is Load, except that a missing file yields Defaults with
// found=false. Malformed or invalid files still fail.
func LoadOrDefault(path string) (t Tuning, found bool, err error) {
	t, err = Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), false, nil
	}
	if err != nil {
		return t, false, err
	}
	return t, true, nil
}

func (t Tuning) Validate() error {
	if t.WorldRadiusChunks <= 0 {
		return fmt.Errorf("world_radius_chunks must be > 0, got %d", t.WorldRadiusChunks)
	}
	if t.BaseHeight < 1 {
		return fmt.Errorf("base_height must be >= 1, got %d", t.BaseHeight)
	}
	if t.HeightVariation < 0 {
		return fmt.Errorf("height_variation must be >= 0, got %d", t.HeightVariation)
	}
	if t.DirtDepth < 0 {
		return fmt.Errorf("dirt_depth must be >= 0, got %d", t.DirtDepth)
	}
	return nil
}
