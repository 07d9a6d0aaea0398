// Command replay regenerates a world from configs and checks that the
// settled meshes match the ones recorded in a server build log.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/voxel/chunkdata"
	"voxelmesh.ai/internal/world"
)

func main() {
	var (
		buildsDir  = flag.String("builds", "./data/builds", "dir containing builds-*.jsonl.zst")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "seed override used by the recorded run (0 keeps the configured seed)")
		radius     = flag.Int("radius", 0, "radius override used by the recorded run (0 keeps the configured radius)")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, found, err := tuning.LoadOrDefault(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintln(os.Stderr, "tuning not found, using defaults:", tp)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *radius > 0 {
		tune.WorldRadiusChunks = *radius
	}

	files, err := listBuildFiles(*buildsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list builds:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no build files found in", *buildsDir)
		os.Exit(1)
	}
	var entries []world.BuildLogEntry
	for _, path := range files {
		es, err := readBuildFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		entries = append(entries, es...)
	}

	m, err := world.New(tune, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	m.Generate()

	res, err := verify(m, entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	causes := make([]string, 0, len(res.ByCause))
	for c := range res.ByCause {
		causes = append(causes, c)
	}
	sort.Strings(causes)
	for _, c := range causes {
		fmt.Printf("  %-8s %d\n", c, res.ByCause[c])
	}
	fmt.Printf("replay ok: checked=%d settled chunks of %d entries\n", res.Checked, len(entries))
}

type result struct {
	Checked int
	ByCause map[string]int
}

// verify compares the settle pass of the first recorded run against m,
// which must be freshly generated. The settle pass is the run of MANUAL
// builds before the first EDIT.
func verify(m *world.Map, entries []world.BuildLogEntry) (result, error) {
	res := result{ByCause: map[string]int{}}
	editing := false
	var lastSeq uint64
	for _, e := range entries {
		res.ByCause[e.Cause]++
		if e.Seq <= lastSeq {
			// A new server run restarted the sequence; only the first is checked.
			editing = true
		}
		lastSeq = e.Seq
		if e.Cause == "EDIT" {
			editing = true
		}
		if editing || e.Cause != "MANUAL" {
			continue
		}

		t, ok := chunkdata.ParseType(e.Layer)
		if !ok {
			return res, fmt.Errorf("seq %d: unknown layer %q", e.Seq, e.Layer)
		}
		c := m.Chunk(chunkdata.Coord{X: e.CX, Z: e.CZ}, t)
		if c == nil {
			return res, fmt.Errorf("seq %d: chunk %s %d.%d not in regenerated world", e.Seq, e.Layer, e.CX, e.CZ)
		}
		if got := c.Mesh().FaceCount(); got != e.Faces {
			return res, fmt.Errorf("faces mismatch for %s %d.%d: got=%d want=%d", e.Layer, e.CX, e.CZ, got, e.Faces)
		}
		if got := len(c.Mesh().Vertices); got != e.Vertices {
			return res, fmt.Errorf("vertices mismatch for %s %d.%d: got=%d want=%d", e.Layer, e.CX, e.CZ, got, e.Vertices)
		}
		res.Checked++
	}
	if res.Checked == 0 {
		return res, fmt.Errorf("no settle builds found")
	}
	return res, nil
}

func listBuildFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "builds-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func readBuildFile(path string) ([]world.BuildLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []world.BuildLogEntry
	for sc.Scan() {
		var e world.BuildLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
