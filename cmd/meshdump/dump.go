package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"voxelmesh.ai/internal/persistence/meshfile"
	"voxelmesh.ai/internal/world"
)

type dumpOptions struct {
	Dir       string
	RunID     string
	SkipEmpty bool
	Verify    bool
}

type layerStats struct {
	Files int
	Faces int
	Bytes int64
}

type report struct {
	Dir     string
	Files   int
	Skipped int
	Bytes   int64
	ByLayer map[string]*layerStats
	Paths   []string
}

func (r *report) Layers() []string {
	out := make([]string, 0, len(r.ByLayer))
	for l := range r.ByLayer {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// dump writes the current mesh of every chunk in m under opts.Dir.
func dump(m *world.Map, opts dumpOptions) (*report, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	rep := &report{Dir: opts.Dir, ByLayer: map[string]*layerStats{}}
	digest := m.Catalogs().Blocks.PaletteDigest
	now := time.Now().UnixMilli()

	for _, ev := range m.Snapshot() {
		if opts.SkipEmpty && ev.Mesh.Empty() {
			rep.Skipped++
			continue
		}
		layer := ev.Key.Type.String()
		path := filepath.Join(opts.Dir, meshfile.Name(layer, ev.Key.Coord.X, ev.Key.Coord.Z))
		f := meshfile.File{
			Header: meshfile.Header{
				RunID:         opts.RunID,
				Layer:         layer,
				CX:            ev.Key.Coord.X,
				CZ:            ev.Key.Coord.Z,
				Revision:      ev.Revision,
				Faces:         ev.Faces,
				Active:        ev.Active,
				PaletteDigest: digest,
				CreatedUnixMs: now,
			},
			Mesh: ev.Mesh,
		}
		if err := meshfile.Write(path, f); err != nil {
			return rep, fmt.Errorf("write %s: %w", path, err)
		}
		if opts.Verify {
			h, err := meshfile.ReadHeader(path)
			if err != nil {
				return rep, fmt.Errorf("verify %s: %w", path, err)
			}
			if h.RunID != opts.RunID || h.Revision != ev.Revision || h.Faces != ev.Faces {
				return rep, fmt.Errorf("verify %s: header mismatch", path)
			}
		}
		fi, err := os.Stat(path)
		if err != nil {
			return rep, err
		}

		st := rep.ByLayer[layer]
		if st == nil {
			st = &layerStats{}
			rep.ByLayer[layer] = st
		}
		st.Files++
		st.Faces += ev.Faces
		st.Bytes += fi.Size()
		rep.Files++
		rep.Bytes += fi.Size()
		rep.Paths = append(rep.Paths, path)
	}
	return rep, nil
}
