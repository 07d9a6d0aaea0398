package indexdb

import (
	"path/filepath"
	"sync"
	"testing"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan world.BuildLogEntry, 1)}
	s.ch <- world.BuildLogEntry{Seq: 1}

	s.RecordBuild(world.BuildLogEntry{Seq: 2})
	s.RecordBuild(world.BuildLogEntry{Seq: 3})

	st := s.Stats()
	if st.DropTotal != 2 {
		t.Fatalf("DropTotal=%d want=2", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsLatestChunkMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	runID := s.RunID()
	s.RecordBuild(world.BuildLogEntry{Seq: 1, UnixMs: 10, Layer: "GROUND", CX: -1, CZ: 2, Cause: "INITIAL", Revision: 1, Faces: 40, Vertices: 160, Active: true})
	s.RecordBuild(world.BuildLogEntry{Seq: 2, UnixMs: 20, Layer: "GROUND", CX: -1, CZ: 2, Cause: "EDIT", Revision: 2, Faces: 42, Vertices: 168, Active: true})
	s.RecordBuild(world.BuildLogEntry{Seq: 3, UnixMs: 30, Layer: "WATER", CX: -1, CZ: 2, Cause: "INITIAL", Revision: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := s.Stats(); st.WrittenTotal != 3 || st.WriteFail != 0 {
		t.Fatalf("stats=%+v", st)
	}
	s.RecordBuild(world.BuildLogEntry{Seq: 4})

	r, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()
	if r.RunID() == runID {
		t.Fatalf("run id reused")
	}

	row, ok, err := r.ChunkMesh("GROUND", -1, 2)
	if err != nil || !ok {
		t.Fatalf("ChunkMesh: ok=%v err=%v", ok, err)
	}
	if row.Revision != 2 || row.Faces != 42 || row.Vertices != 168 || !row.Active || row.RunID != runID {
		t.Fatalf("row=%+v", row)
	}
	if _, ok, _ := r.ChunkMesh("GROUND", 5, 5); ok {
		t.Fatalf("unexpected row for unknown chunk")
	}

	counts, err := r.CountBuilds(runID)
	if err != nil {
		t.Fatalf("CountBuilds: %v", err)
	}
	if counts["INITIAL"] != 2 || counts["EDIT"] != 1 {
		t.Fatalf("counts=%v", counts)
	}
}

func TestSQLiteIndex_ListensToWorld(t *testing.T) {
	configDir := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cfg := tuning.Defaults()
	cfg.WorldRadiusChunks = 1

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.UpsertCatalogs(configDir, cats, cfg); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	m, err := world.New(cfg, cats, world.WithListener(s.Listener()))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	m.Generate()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := s.Stats(); st.WrittenTotal != 16 || st.DropTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_RecordDuringClose(t *testing.T) {
	s, err := openSQLite(filepath.Join(t.TempDir(), "index.sqlite"), 4)
	if err != nil {
		t.Fatalf("openSQLite: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for seq := uint64(0); ; seq++ {
				select {
				case <-stop:
					return
				default:
				}
				s.RecordBuild(world.BuildLogEntry{Seq: seq, Layer: "GROUND", CX: i, Cause: "MANUAL"})
			}
		}(i)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(stop)
	wg.Wait()

	s.RecordBuild(world.BuildLogEntry{Seq: 1})
	if st := s.Stats(); st.QueueDepth != 0 {
		t.Fatalf("queue depth after close=%d", st.QueueDepth)
	}
}
