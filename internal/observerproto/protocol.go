package observerproto

import "github.com/go-gl/mathgl/mgl32"

// Version is the mesh stream protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeMesh      = "MESH"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional layer filter ("GROUND", "WATER"); empty means all.
	Layers []string `json:"layers,omitempty"`
	// Inactive chunks are skipped unless requested.
	IncludeInactive bool `json:"include_inactive,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldParams     WorldParams `json:"world_params"`
	Atlas           Atlas       `json:"atlas"`
	BlockPalette    []string    `json:"block_palette"`
	PaletteDigest   string      `json:"palette_digest"`
}

type WorldParams struct {
	ChunkSize         [3]int   `json:"chunk_size"`
	WorldRadiusChunks int      `json:"world_radius_chunks"`
	Seed              int64    `json:"seed"`
	SeaLevel          int      `json:"sea_level"`
	Layers            []string `json:"layers"`
}

type Atlas struct {
	TilesX  int     `json:"tiles_x"`
	TilesY  int     `json:"tiles_y"`
	UVInset float32 `json:"uv_inset"`
}

// Server -> Client. Sent once after a valid SUBSCRIBE.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Chunks          int    `json:"chunks"`
}

// Server -> Client. The full mesh of one chunk; replaces any earlier mesh
// for the same layer and coordinate.
type MeshMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`

	Layer    string `json:"layer"`
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	Cause    string `json:"cause,omitempty"`
	Revision uint64 `json:"revision"`
	Active   bool   `json:"active"`

	// Origin is the world position of the chunk's local (0,0,0); vertices
	// are chunk-local.
	Origin    mgl32.Vec3   `json:"origin"`
	Vertices  []mgl32.Vec3 `json:"vertices"`
	Triangles []uint32     `json:"triangles"`
	UVs       []mgl32.Vec2 `json:"uvs"`
}
