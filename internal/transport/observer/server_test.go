package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/observerproto"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/voxel/block"
	"voxelmesh.ai/internal/world"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validate(t *testing.T, s *jsonschema.Schema, raw []byte) {
	t.Helper()
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v\n%s", err, raw)
	}
}

func newTestServer(t *testing.T) (*world.Map, *Server, *httptest.Server) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cfg := tuning.Defaults()
	cfg.WorldRadiusChunks = 1
	m, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	m.Generate()

	s := NewServer(m, log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, s, srv
}

func dial(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func readRaw(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func TestBootstrapMatchesSchema(t *testing.T) {
	_, _, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	validate(t, compileSchema(t, "bootstrap.schema.json"), raw)

	var b observerproto.BootstrapResponse
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldParams.ChunkSize != [3]int{16, 16, 16} || len(b.WorldParams.Layers) != 2 {
		t.Fatalf("world params=%+v", b.WorldParams)
	}

	post, err := http.Post(srv.URL+"/admin/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", post.StatusCode)
	}
}

func TestStreamSnapshotThenRebuilds(t *testing.T) {
	m, s, srv := newTestServer(t)
	meshSchema := compileSchema(t, "mesh.schema.json")
	welcomeSchema := compileSchema(t, "welcome.schema.json")

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	subRaw, _ := json.Marshal(sub)
	validate(t, compileSchema(t, "subscribe.schema.json"), subRaw)
	conn := dial(t, srv, sub)

	raw := readRaw(t, conn)
	validate(t, welcomeSchema, raw)
	var welcome observerproto.WelcomeMsg
	_ = json.Unmarshal(raw, &welcome)
	if welcome.Chunks != 8 || welcome.SessionID == "" {
		t.Fatalf("welcome=%+v", welcome)
	}

	seen := map[string]bool{}
	for i := 0; i < welcome.Chunks; i++ {
		raw := readRaw(t, conn)
		validate(t, meshSchema, raw)
		var msg observerproto.MeshMsg
		_ = json.Unmarshal(raw, &msg)
		if msg.Cause != "" {
			t.Fatalf("snapshot mesh carries cause %q", msg.Cause)
		}
		key := fmt.Sprintf("%s %d.%d", msg.Layer, msg.CX, msg.CZ)
		if seen[key] {
			t.Fatalf("duplicate snapshot mesh %s", key)
		}
		seen[key] = true
	}
	if st := s.Stats(); st.Sessions != 1 {
		t.Fatalf("sessions=%d", st.Sessions)
	}

	if err := m.EditVoxel(mgl32.Vec3{8, 12, 8}, "STONE", block.Identity); err != nil {
		t.Fatalf("EditVoxel: %v", err)
	}
	var layers []string
	for i := 0; i < 2; i++ {
		raw := readRaw(t, conn)
		validate(t, meshSchema, raw)
		var msg observerproto.MeshMsg
		_ = json.Unmarshal(raw, &msg)
		if msg.Cause != "EDIT" || msg.CX != 0 || msg.CZ != 0 {
			t.Fatalf("rebuild msg=%s cx=%d cz=%d", msg.Cause, msg.CX, msg.CZ)
		}
		layers = append(layers, msg.Layer)
	}
	if layers[0] != "GROUND" || layers[1] != "WATER" {
		t.Fatalf("layers=%v", layers)
	}
}

func TestStreamLayerFilter(t *testing.T) {
	m, _, srv := newTestServer(t)
	conn := dial(t, srv, observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Layers:          []string{"WATER"},
	})
	var welcome observerproto.WelcomeMsg
	_ = json.Unmarshal(readRaw(t, conn), &welcome)
	if welcome.Chunks != 4 {
		t.Fatalf("welcome chunks=%d want 4", welcome.Chunks)
	}
	for i := 0; i < 4; i++ {
		var msg observerproto.MeshMsg
		_ = json.Unmarshal(readRaw(t, conn), &msg)
		if msg.Layer != "WATER" {
			t.Fatalf("unexpected layer %s", msg.Layer)
		}
	}
	if err := m.EditVoxel(mgl32.Vec3{-8, 12, -8}, "STONE", block.Identity); err != nil {
		t.Fatalf("EditVoxel: %v", err)
	}
	var msg observerproto.MeshMsg
	_ = json.Unmarshal(readRaw(t, conn), &msg)
	if msg.Layer != "WATER" || msg.Cause != "EDIT" || msg.CX != -1 || msg.CZ != -1 {
		t.Fatalf("msg=%+v", msg)
	}
	if msg.Origin != (mgl32.Vec3{-16, 0, -16}) {
		t.Fatalf("origin=%v", msg.Origin)
	}
}

func TestStreamRejectsBadSubscribe(t *testing.T) {
	_, s, srv := newTestServer(t)
	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
	if st := s.Stats(); st.Sessions != 0 {
		t.Fatalf("sessions=%d", st.Sessions)
	}
}

func TestHubDropsSlowSession(t *testing.T) {
	h := newHub(1)
	sess := &session{id: "s1"}
	if n := h.attach(sess, nil); n != 0 {
		t.Fatalf("attach queued %d", n)
	}
	h.publish(world.BuildEvent{Seq: 1, Active: true})
	h.publish(world.BuildEvent{Seq: 2, Active: true})

	st := h.stats()
	if st.Sessions != 0 || st.Dropped != 1 {
		t.Fatalf("stats=%+v", st)
	}
	m, ok := <-sess.out
	if !ok || m.ev.Seq != 1 {
		t.Fatalf("first queued event lost")
	}
	if _, ok := <-sess.out; ok {
		t.Fatalf("queue not closed")
	}
	h.detach(sess)
}

func TestSessionFilters(t *testing.T) {
	inactive := world.BuildEvent{Active: false}
	if (&session{}).wants(inactive) {
		t.Fatalf("inactive chunk delivered by default")
	}
	if !(&session{includeInactive: true}).wants(inactive) {
		t.Fatalf("include_inactive ignored")
	}
	ground := world.BuildEvent{Active: true}
	if (&session{layers: layerFilter([]string{"WATER"})}).wants(ground) {
		t.Fatalf("layer filter ignored")
	}
}
