package world

import (
	"voxelmesh.ai/internal/voxel/chunk"
	"voxelmesh.ai/internal/voxel/meshdata"
)

// BuildEvent describes one finished mesh build.
type BuildEvent struct {
	Seq      uint64
	Key      ChunkKey
	Cause    chunk.BuildCause
	Revision uint64
	Active   bool
	Faces    int
	Mesh     meshdata.Mesh
}

// Listener receives every build in order. It runs with the map locked and
// must not call back into the Map.
type Listener func(BuildEvent)

func (m *Map) MeshBuilt(c *chunk.Chunk, cause chunk.BuildCause) {
	k := ChunkKey{Coord: c.Coord(), Type: c.Type()}
	mesh := c.Mesh()
	faces := mesh.FaceCount()

	if int(cause) < len(m.metrics.builds) {
		m.metrics.builds[cause].Inc()
	}
	m.metrics.faces.Add(int64(faces - m.faces[k]))
	m.faces[k] = faces

	if len(m.listeners) == 0 {
		return
	}
	m.buildSeq++
	ev := BuildEvent{
		Seq:      m.buildSeq,
		Key:      k,
		Cause:    cause,
		Revision: c.Revision(),
		Active:   c.IsActive(),
		Faces:    faces,
		Mesh:     mesh,
	}
	for _, l := range m.listeners {
		l(ev)
	}
}

// Snapshot returns the current mesh of every chunk in key order.
func (m *Map) Snapshot() []BuildEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Map) snapshotLocked() []BuildEvent {
	keys := m.sortedKeysLocked()
	out := make([]BuildEvent, 0, len(keys))
	for _, k := range keys {
		c := m.chunks[k]
		mesh := c.Mesh()
		out = append(out, BuildEvent{
			Seq:      m.buildSeq,
			Key:      k,
			Revision: c.Revision(),
			Active:   c.IsActive(),
			Faces:    mesh.FaceCount(),
			Mesh:     mesh,
		})
	}
	return out
}

// BuildLogEntry is the durable record of one build, without mesh buffers.
type BuildLogEntry struct {
	Seq      uint64 `json:"seq"`
	UnixMs   int64  `json:"unix_ms"`
	Layer    string `json:"layer"`
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	Cause    string `json:"cause"`
	Revision uint64 `json:"revision"`
	Faces    int    `json:"faces"`
	Vertices int    `json:"vertices"`
	Active   bool   `json:"active"`
}

func (ev BuildEvent) LogEntry(unixMs int64) BuildLogEntry {
	return BuildLogEntry{
		Seq:      ev.Seq,
		UnixMs:   unixMs,
		Layer:    ev.Key.Type.String(),
		CX:       ev.Key.Coord.X,
		CZ:       ev.Key.Coord.Z,
		Cause:    ev.Cause.String(),
		Revision: ev.Revision,
		Faces:    ev.Faces,
		Vertices: len(ev.Mesh.Vertices),
		Active:   ev.Active,
	}
}

// SnapshotThen hands fn the current snapshot while the map stays locked, so
// a listener registered inside fn sees every build after it and none
// before. fn must not call back into the Map.
func (m *Map) SnapshotThen(fn func([]BuildEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.snapshotLocked())
}
