package indexdb

import (
	"database/sql"
	"errors"
)

type ChunkMeshRow struct {
	Layer     string `json:"layer"`
	CX        int    `json:"cx"`
	CZ        int    `json:"cz"`
	RunID     string `json:"run_id"`
	Revision  uint64 `json:"revision"`
	Faces     int    `json:"faces"`
	Vertices  int    `json:"vertices"`
	Active    bool   `json:"active"`
	UpdatedMs int64  `json:"updated_ms"`
}

// ChunkMesh returns the latest indexed build of one chunk.
func (s *SQLiteIndex) ChunkMesh(layer string, cx, cz int) (ChunkMeshRow, bool, error) {
	r := ChunkMeshRow{Layer: layer, CX: cx, CZ: cz}
	var active int
	err := s.db.QueryRow(`SELECT run_id,revision,faces,vertices,active,updated_ms FROM chunk_meshes WHERE layer=? AND cx=? AND cz=?`,
		layer, cx, cz).Scan(&r.RunID, &r.Revision, &r.Faces, &r.Vertices, &active, &r.UpdatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	r.Active = active != 0
	return r, true, nil
}

// CountBuilds returns builds per cause for one run.
func (s *SQLiteIndex) CountBuilds(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT cause, COUNT(*) FROM mesh_builds WHERE run_id=? GROUP BY cause`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cause string
		var n int
		if err := rows.Scan(&cause, &n); err != nil {
			return nil, err
		}
		out[cause] = n
	}
	return out, rows.Err()
}
