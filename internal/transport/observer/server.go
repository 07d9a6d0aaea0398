package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelmesh.ai/internal/observerproto"
	"voxelmesh.ai/internal/voxel/meshdata"
	"voxelmesh.ai/internal/voxel/voxeldata"
	"voxelmesh.ai/internal/world"
)

type Server struct {
	world *world.Map
	log   *log.Logger
	hub   *hub

	upgrader websocket.Upgrader
}

// NewServer registers the stream hub as a build listener on m.
func NewServer(m *world.Map, logger *log.Logger) *Server {
	s := &Server{
		world: m,
		log:   logger,
		hub:   newHub(defaultQueue),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	m.AddListener(s.hub.publish)
	return s
}

func (s *Server) Stats() Stats { return s.hub.stats() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Tuning()
		blocks := s.world.Catalogs().Blocks
		layers := []string{}
		for _, t := range s.world.Layers() {
			layers = append(layers, t.String())
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldParams: observerproto.WorldParams{
				ChunkSize:         [3]int{voxeldata.ChunkWidth, voxeldata.ChunkHeight, voxeldata.ChunkLength},
				WorldRadiusChunks: cfg.WorldRadiusChunks,
				Seed:              cfg.Seed,
				SeaLevel:          cfg.SeaLevel,
				Layers:            layers,
			},
			Atlas: observerproto.Atlas{
				TilesX:  voxeldata.TextureAtlasSizeInBlocksX,
				TilesY:  voxeldata.TextureAtlasSizeInBlocksY,
				UVInset: meshdata.UVInset,
			},
			BlockPalette:  blocks.Palette,
			PaletteDigest: blocks.PaletteDigest,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sess := &session{
			id:              uuid.NewString(),
			layers:          layerFilter(sub.Layers),
			includeInactive: sub.IncludeInactive,
		}
		var chunks int
		s.world.SnapshotThen(func(snap []world.BuildEvent) {
			chunks = s.hub.attach(sess, snap)
		})
		defer s.hub.detach(sess)

		welcome, _ := json.Marshal(observerproto.WelcomeMsg{
			Type:            observerproto.TypeWelcome,
			ProtocolVersion: observerproto.Version,
			SessionID:       sess.id,
			Chunks:          chunks,
		})
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}
		s.log.Printf("observer %s subscribed layers=%v chunks=%d", sess.id, sub.Layers, chunks)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case m, ok := <-sess.out:
					if !ok {
						// Dropped by the hub for falling behind.
						closeWith(conn, websocket.CloseTryAgainLater, "slow consumer")
						_ = conn.Close()
						writeErr <- nil
						return
					}
					if !sess.wants(m.ev) {
						continue
					}
					b, err := json.Marshal(meshMsg(m))
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: the stream is one-way after SUBSCRIBE; reads only
		// detect the client going away.
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s closed", sess.id)
	}
}

func meshMsg(m outMsg) observerproto.MeshMsg {
	ev := m.ev
	out := observerproto.MeshMsg{
		Type:            observerproto.TypeMesh,
		ProtocolVersion: observerproto.Version,
		Seq:             ev.Seq,
		Layer:           ev.Key.Type.String(),
		CX:              ev.Key.Coord.X,
		CZ:              ev.Key.Coord.Z,
		Revision:        ev.Revision,
		Active:          ev.Active,
		Origin:          voxeldata.Offset{ev.Key.Coord.X * voxeldata.ChunkWidth, 0, ev.Key.Coord.Z * voxeldata.ChunkLength}.Vec3(),
		Vertices:        ev.Mesh.Vertices,
		Triangles:       ev.Mesh.Triangles,
		UVs:             ev.Mesh.UVs,
	}
	if !m.snapshot {
		out.Cause = ev.Cause.String()
	}
	if out.Vertices == nil {
		out.Vertices = []mgl32.Vec3{}
	}
	if out.Triangles == nil {
		out.Triangles = []uint32{}
	}
	if out.UVs == nil {
		out.UVs = []mgl32.Vec2{}
	}
	return out
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
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
