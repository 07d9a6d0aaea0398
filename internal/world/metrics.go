package world

import "voxelmesh.ai/internal/voxel/chunk"

type Metrics struct {
	Chunks        int               `json:"chunks"`
	Faces         int64             `json:"faces"`
	Builds        map[string]uint64 `json:"builds"`
	Edits         uint64            `json:"edits"`
	EditsRejected uint64            `json:"edits_rejected"`
}

// Metrics reads the counters without taking the map lock.
func (m *Map) Metrics() Metrics {
	out := Metrics{
		Chunks:        int(m.metrics.chunks.Load()),
		Faces:         m.metrics.faces.Load(),
		Builds:        map[string]uint64{},
		Edits:         m.metrics.edits.Load(),
		EditsRejected: m.metrics.editsRejected.Load(),
	}
	for i := range m.metrics.builds {
		out.Builds[chunk.BuildCause(i).String()] = m.metrics.builds[i].Load()
	}
	return out
}
