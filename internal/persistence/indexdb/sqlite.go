package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/world"
)

// SQLiteIndex is a query-friendly read model of mesh builds. Writes are
// queued to a single writer goroutine and dropped when it falls behind.
type SQLiteIndex struct {
	db    *sql.DB
	runID string

	ch   chan world.BuildLogEntry
	wg   sync.WaitGroup
	once sync.Once

	// sendMu orders queue sends against Close closing ch.
	sendMu sync.RWMutex
	closed bool

	dropped   atomic.Uint64
	written   atomic.Uint64
	writeFail atomic.Uint64
}

type Stats struct {
	RunID         string `json:"run_id"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	WrittenTotal  uint64 `json:"written_total"`
	WriteFail     uint64 `json:"write_fail_total"`
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueue)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: uuid.NewString(),
		ch:    make(chan world.BuildLogEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mesh_builds (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			unix_ms INTEGER NOT NULL,
			layer TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			cause TEXT NOT NULL,
			revision INTEGER NOT NULL,
			faces INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mesh_builds_chunk ON mesh_builds(layer, cx, cz, unix_ms);`,
		`CREATE TABLE IF NOT EXISTS chunk_meshes (
			layer TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			faces INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			active INTEGER NOT NULL,
			updated_ms INTEGER NOT NULL,
			PRIMARY KEY (layer, cx, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

// Close drains the queue, commits, and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordBuild queues a build row. It never blocks.
func (s *SQLiteIndex) RecordBuild(e world.BuildLogEntry) {
	if s == nil {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// The JSONL rebuild log remains the source of truth.
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Listener() world.Listener {
	return func(ev world.BuildEvent) {
		s.RecordBuild(ev.LogEntry(time.Now().UnixMilli()))
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		RunID:         s.runID,
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
		WriteFail:     s.writeFail.Load(),
	}
}

// UpsertCatalogs stores the block catalog and the applied tuning so builds
// can be interpreted later.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertBuild, _ := s.db.Prepare(`INSERT OR REPLACE INTO mesh_builds(run_id,seq,unix_ms,layer,cx,cz,cause,revision,faces,vertices) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	upsertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunk_meshes(layer,cx,cz,run_id,revision,faces,vertices,active,updated_ms) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertBuild != nil {
			_ = insertBuild.Close()
		}
		if upsertChunk != nil {
			_ = upsertChunk.Close()
		}
	}()
	if insertBuild == nil || upsertChunk == nil {
		for range s.ch {
			s.writeFail.Add(1)
		}
		return
	}

	var (
		tx            *sql.Tx
		pending       uint64
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(pending)
		} else {
			s.written.Add(pending)
		}
		tx = nil
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFail.Add(pending)
		tx = nil
		pending = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.writeFail.Add(1)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
		}
		active := 0
		if e.Active {
			active = 1
		}
		if _, err := tx.Stmt(insertBuild).Exec(s.runID, int64(e.Seq), e.UnixMs, e.Layer, e.CX, e.CZ, e.Cause, int64(e.Revision), e.Faces, e.Vertices); err != nil {
			pending++
			rollback()
			continue
		}
		if _, err := tx.Stmt(upsertChunk).Exec(e.Layer, e.CX, e.CZ, s.runID, int64(e.Revision), e.Faces, e.Vertices, active, e.UnixMs); err != nil {
			pending++
			rollback()
			continue
		}
		pending++
		// Commit once the burst drains so readers are not held off.
		if int(pending) >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
