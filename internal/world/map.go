// Package world hosts a bounded grid of chunks and answers the chunk oracle
// queries for them.
package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/terrain/gen"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/voxel/chunk"
	"voxelmesh.ai/internal/voxel/chunkdata"
)

type ChunkKey struct {
	Coord chunkdata.Coord
	Type  chunkdata.Type
}

func (k ChunkKey) String() string { return k.Type.String() + " " + k.Coord.String() }

// Map owns every chunk of the world. Generate, EditVoxel, Chunk, Keys,
// SetActive, AddListener, Snapshot, SnapshotThen and Metrics lock mu and
// are safe for concurrent use. The chunk.Oracle methods (HeightAt,
// ClassifyBlock, IsInsideWorld, ResolveChunk) and MeshBuilt do not lock:
// chunks call them while one of the operations above holds mu. Chunks
// returned by Chunk are read-only for callers; rebuilding or editing them
// directly bypasses the lock, use EditVoxel instead.
type Map struct {
	cfg    tuning.Tuning
	cats   *catalogs.Catalogs
	terr   *gen.Generator
	logger *log.Logger

	mu     sync.Mutex
	chunks map[ChunkKey]*chunk.Chunk
	faces  map[ChunkKey]int

	// Listeners are invoked synchronously with mu held.
	listeners []Listener
	buildSeq  uint64

	metrics counters
}

type counters struct {
	builds        [4]atomic.Uint64 // by chunk.BuildCause
	faces         atomic.Int64
	chunks        atomic.Int64
	edits         atomic.Uint64
	editsRejected atomic.Uint64
}

type Option func(*Map)

func WithLogger(l *log.Logger) Option {
	return func(m *Map) { m.logger = l }
}

func WithListener(l Listener) Option {
	return func(m *Map) { m.listeners = append(m.listeners, l) }
}

func New(cfg tuning.Tuning, cats *catalogs.Catalogs, opts ...Option) (*Map, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mat, err := gen.MaterialsFrom(&cats.Blocks)
	if err != nil {
		return nil, err
	}
	m := &Map{
		cfg:    cfg,
		cats:   cats,
		terr:   gen.New(cfg, mat),
		logger: log.New(io.Discard, "", 0),
		chunks: map[ChunkKey]*chunk.Chunk{},
		faces:  map[ChunkKey]int{},
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *Map) Tuning() tuning.Tuning        { return m.cfg }
func (m *Map) Catalogs() *catalogs.Catalogs { return m.cats }
func (m *Map) Layers() []chunkdata.Type {
	if m.cfg.WaterLayer {
		return []chunkdata.Type{chunkdata.Ground, chunkdata.Water}
	}
	return []chunkdata.Type{chunkdata.Ground}
}

// Generate creates every chunk of every layer inside the world radius, then
// rebuilds them all once more so seams facing chunks created later are
// culled. Chunks that already exist are kept; a call that creates nothing
// builds nothing.
func (m *Map) Generate() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.cfg.WorldRadiusChunks
	created := 0
	for _, t := range m.Layers() {
		for cz := -r; cz < r; cz++ {
			for cx := -r; cx < r; cx++ {
				k := ChunkKey{Coord: chunkdata.Coord{X: cx, Z: cz}, Type: t}
				if _, ok := m.chunks[k]; ok {
					continue
				}
				m.chunks[k] = chunk.New(k.Coord, t, m)
				created++
			}
		}
	}
	m.metrics.chunks.Store(int64(len(m.chunks)))
	if created == 0 {
		return 0
	}

	for _, k := range m.sortedKeysLocked() {
		m.chunks[k].BuildMesh()
	}
	m.logger.Printf("generated %d chunks (radius=%d layers=%d faces=%d)",
		created, r, len(m.Layers()), m.metrics.faces.Load())
	return created
}

// Chunk returns the chunk at coord in layer t, or nil.
func (m *Map) Chunk(coord chunkdata.Coord, t chunkdata.Type) *chunk.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[ChunkKey{Coord: coord, Type: t}]
}

// Keys lists every loaded chunk, ordered by layer, then z, then x.
func (m *Map) Keys() []ChunkKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeysLocked()
}

func (m *Map) sortedKeysLocked() []ChunkKey {
	keys := make([]ChunkKey, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Coord.Z != b.Coord.Z {
			return a.Coord.Z < b.Coord.Z
		}
		return a.Coord.X < b.Coord.X
	})
	return keys
}

// SetActive toggles a chunk's visibility flag.
func (m *Map) SetActive(k ChunkKey, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[k]
	if !ok {
		return fmt.Errorf("chunk %s not loaded", k)
	}
	c.SetActive(on)
	return nil
}

func (m *Map) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}
