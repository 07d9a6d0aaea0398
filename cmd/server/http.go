package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/persistence/indexdb"
	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/transport/observer"
	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/voxel/chunkdata"
	"voxelmesh.ai/internal/world"
)

type editRequest struct {
	Pos      [3]float32 `json:"pos"`
	Block    string     `json:"block"`
	Rotation uint8      `json:"rotation"`
}

type activeRequest struct {
	Layer  string `json:"layer"`
	CX     int    `json:"cx"`
	CZ     int    `json:"cz"`
	Active bool   `json:"active"`
}

type chunkSummary struct {
	Layer    string `json:"layer"`
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	Revision uint64 `json:"revision"`
	Faces    int    `json:"faces"`
	Active   bool   `json:"active"`
}

// newMux wires the HTTP surface. idx and buildLog may be nil.
func newMux(m *world.Map, obs *observer.Server, idx *indexdb.SQLiteIndex, buildLog *persistlog.RebuildLogger, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, m, obs, idx, buildLog)
	})

	mux.HandleFunc("/admin/v1/chunks", localOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		snap := m.Snapshot()
		out := make([]chunkSummary, 0, len(snap))
		for _, ev := range snap {
			out = append(out, chunkSummary{
				Layer:    ev.Key.Type.String(),
				CX:       ev.Key.Coord.X,
				CZ:       ev.Key.Coord.Z,
				Revision: ev.Revision,
				Faces:    ev.Faces,
				Active:   ev.Active,
			})
		}
		writeJSON(rw, http.StatusOK, out)
	}))

	mux.HandleFunc("/admin/v1/edit", localOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req editRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json: " + err.Error()})
			return
		}
		pos := mgl32.Vec3{req.Pos[0], req.Pos[1], req.Pos[2]}
		if err := m.EditVoxel(pos, strings.ToUpper(strings.TrimSpace(req.Block)), block.Rotation(req.Rotation)); err != nil {
			writeJSON(rw, editStatus(err), map[string]any{"ok": false, "error": err.Error()})
			return
		}
		logger.Printf("admin edit %s at %v", req.Block, req.Pos)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "metrics": m.Metrics()})
	}))

	mux.HandleFunc("/admin/v1/chunk/active", localOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req activeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json: " + err.Error()})
			return
		}
		t, ok := chunkdata.ParseType(req.Layer)
		if !ok {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "unknown layer " + req.Layer})
			return
		}
		key := world.ChunkKey{Coord: chunkdata.Coord{X: req.CX, Z: req.CZ}, Type: t}
		if err := m.SetActive(key, req.Active); err != nil {
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
	}))

	mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	return mux
}

func editStatus(err error) int {
	switch {
	case errors.Is(err, world.ErrUnknownBlock), errors.Is(err, world.ErrInvalidRotation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, world.ErrOutsideWorld), errors.Is(err, world.ErrNotLoaded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeMetrics(rw http.ResponseWriter, m *world.Map, obs *observer.Server, idx *indexdb.SQLiteIndex, buildLog *persistlog.RebuildLogger) {
	mt := m.Metrics()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP voxelmesh_chunks Loaded chunk count across layers.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_chunks gauge\n")
	fmt.Fprintf(rw, "voxelmesh_chunks %d\n", mt.Chunks)

	fmt.Fprintf(rw, "# HELP voxelmesh_faces Faces in the current meshes.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_faces gauge\n")
	fmt.Fprintf(rw, "voxelmesh_faces %d\n", mt.Faces)

	fmt.Fprintf(rw, "# HELP voxelmesh_mesh_builds_total Mesh builds by cause.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_mesh_builds_total counter\n")
	for _, cause := range []string{"INITIAL", "MANUAL", "EDIT", "NEIGHBOR"} {
		fmt.Fprintf(rw, "voxelmesh_mesh_builds_total{cause=%q} %d\n", cause, mt.Builds[cause])
	}

	fmt.Fprintf(rw, "# HELP voxelmesh_edits_total Voxel edits by result.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_edits_total counter\n")
	fmt.Fprintf(rw, "voxelmesh_edits_total{result=%q} %d\n", "ok", mt.Edits)
	fmt.Fprintf(rw, "voxelmesh_edits_total{result=%q} %d\n", "rejected", mt.EditsRejected)

	st := obs.Stats()
	fmt.Fprintf(rw, "# HELP voxelmesh_observer_sessions Connected mesh stream sessions.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_observer_sessions gauge\n")
	fmt.Fprintf(rw, "voxelmesh_observer_sessions %d\n", st.Sessions)
	fmt.Fprintf(rw, "# HELP voxelmesh_observer_dropped_total Sessions dropped for falling behind.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_observer_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelmesh_observer_dropped_total %d\n", st.Dropped)

	if idx != nil {
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP voxelmesh_index_queue_depth Current index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelmesh_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelmesh_index_rows_total Index rows by result.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_rows_total counter\n")
		fmt.Fprintf(rw, "voxelmesh_index_rows_total{result=%q} %d\n", "written", s.WrittenTotal)
		fmt.Fprintf(rw, "voxelmesh_index_rows_total{result=%q} %d\n", "dropped", s.DropTotal)
		fmt.Fprintf(rw, "voxelmesh_index_rows_total{result=%q} %d\n", "failed", s.WriteFail)
	}
	if buildLog != nil {
		n, _ := buildLog.Errors()
		fmt.Fprintf(rw, "# HELP voxelmesh_build_log_errors_total Failed build log writes.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_build_log_errors_total counter\n")
		fmt.Fprintf(rw, "voxelmesh_build_log_errors_total %d\n", n)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
