package observer

import (
	"sync"

	"voxelmesh.ai/internal/world"
)

const defaultQueue = 1024

type outMsg struct {
	ev       world.BuildEvent
	snapshot bool
}

type session struct {
	id              string
	layers          map[string]bool
	includeInactive bool

	out    chan outMsg
	closed bool
}

func (s *session) wants(ev world.BuildEvent) bool {
	if len(s.layers) > 0 && !s.layers[ev.Key.Type.String()] {
		return false
	}
	return ev.Active || s.includeInactive
}

func layerFilter(layers []string) map[string]bool {
	if len(layers) == 0 {
		return nil
	}
	m := make(map[string]bool, len(layers))
	for _, l := range layers {
		m[l] = true
	}
	return m
}

type Stats struct {
	Sessions int    `json:"sessions"`
	Dropped  uint64 `json:"dropped"`
}

// hub fans build events out to sessions. publish runs on the map's
// listener path and never blocks: a session whose queue is full is closed.
type hub struct {
	queue int

	mu       sync.Mutex
	sessions map[string]*session
	dropped  uint64
}

func newHub(queue int) *hub {
	return &hub{queue: queue, sessions: map[string]*session{}}
}

// attach queues the snapshot for sess and starts delivering builds to it.
// It must run inside world.Map.SnapshotThen. Returns the number of chunks
// queued.
func (h *hub) attach(sess *session, snap []world.BuildEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess.out = make(chan outMsg, len(snap)+h.queue)
	n := 0
	for _, ev := range snap {
		if !sess.wants(ev) {
			continue
		}
		sess.out <- outMsg{ev: ev, snapshot: true}
		n++
	}
	h.sessions[sess.id] = sess
	return n
}

func (h *hub) detach(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sess.id)
	if !sess.closed {
		sess.closed = true
		close(sess.out)
	}
}

func (h *hub) publish(ev world.BuildEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sess := range h.sessions {
		select {
		case sess.out <- outMsg{ev: ev}:
		default:
			sess.closed = true
			close(sess.out)
			delete(h.sessions, id)
			h.dropped++
		}
	}
}

func (h *hub) stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Sessions: len(h.sessions), Dropped: h.dropped}
}
