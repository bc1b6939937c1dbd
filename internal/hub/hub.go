package hub

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ai-band/orchestrator/internal/session"
	"github.com/ai-band/orchestrator/internal/ws"
)

// Delivery transports, in priority order.
const (
	TransportSocket   = "socket"
	TransportCallback = "callback"
	TransportFileDrop = "filedrop"
)

// Hub delivers events to plugin sessions over the best available transport:
// an open live socket, a registered HTTP callback, or an append-only marker
// file the plugin polls. Registry lookups produce local copies; no delivery
// I/O runs under the registry lock.
type Hub struct {
	registry  *session.Registry
	markerDir string
	client    *http.Client

	wg sync.WaitGroup
}

func New(registry *session.Registry, markerDir string, callbackTimeout time.Duration) *Hub {
	return &Hub{
		registry:  registry,
		markerDir: markerDir,
		client:    &http.Client{Timeout: callbackTimeout},
	}
}

// Dispatch delivers one event to one session. It returns the transport that
// carried the event ("socket", "callback", or "filedrop"), or "" when the
// session is unknown or nothing could deliver.
//
// A confirmed socket write is final. A socket write failure detaches the
// stale handle and falls through. The file-drop marker is additionally
// written whenever no live-confirmed socket delivery happened, so a plugin
// that only polls its folder never misses an artifact notification.
func (h *Hub) Dispatch(id string, ev Event) string {
	s, ok := h.registry.Get(id)
	if !ok {
		log.Printf("dispatch: unknown session %s, dropping %s", id, ev.Type)
		return ""
	}

	payload, err := ws.Message{Type: ev.Type, Data: ev.Data}.Encode()
	if err != nil {
		log.Printf("dispatch: encode %s for %s: %v", ev.Type, id, err)
		return ""
	}

	if sock := s.Socket(); sock != nil {
		err := sock.Send(payload)
		if err == nil {
			return TransportSocket
		}
		log.Printf("dispatch: socket write to %s failed, detaching: %v", id, err)
		h.registry.DetachSocket(id)
	}

	delivered := ""
	if s.CallbackURL != "" {
		if err := h.sendCallback(s.CallbackURL, ev, payload); err != nil {
			log.Printf("dispatch: callback to %s failed: %v", id, err)
		} else {
			delivered = TransportCallback
		}
	}

	// Durable record for folder-polling plugins. Only artifact events have a
	// marker representation.
	if filename := ev.filename(); filename != "" {
		if err := h.writeMarker(id, filename, ev.timestamp()); err != nil {
			// Last-resort transport; a failure here means the event is lost
			// for socket-less plugins.
			log.Printf("dispatch: file-drop for %s failed: %v", id, err)
		} else if delivered == "" {
			delivered = TransportFileDrop
		}
	}

	return delivered
}

// Broadcast dispatches one event to every session the registry considers
// active at call time. Deliveries run concurrently and independently; one
// session's failure never blocks the rest. Returns the number of sessions
// attempted, not confirmed.
func (h *Hub) Broadcast(ev Event) int {
	ids := h.registry.ActiveIDs()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		h.wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer h.wg.Done()
			h.Dispatch(id, ev)
		}(id)
	}
	wg.Wait()

	return len(ids)
}

// SyncTransport broadcasts a playback position snapshot to all active
// sessions and returns how many were considered active at broadcast time.
func (h *Hub) SyncTransport(state TransportState) int {
	ev := Event{
		Type: ws.MsgTransportSync,
		Data: map[string]any{
			"is_playing":   state.IsPlaying,
			"current_beat": state.CurrentBeat,
			"tempo":        state.Tempo,
			"timestamp":    state.Timestamp,
		},
	}
	n := h.Broadcast(ev)
	log.Printf("transport sync delivered to %d sessions", n)
	return n
}

// Wait blocks until outstanding broadcast deliveries drain. Called on
// shutdown.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// sendCallback posts the event to the session's HTTP callback endpoint.
// Artifact events use the compact file_ready shape on /api/notify; anything
// else forwards the full wire message to /api/broadcast.
func (h *Hub) sendCallback(baseURL string, ev Event, payload []byte) error {
	url := baseURL + "/api/broadcast"
	body := payload
	if filename := ev.filename(); filename != "" {
		url = baseURL + "/api/notify"
		var err error
		body, err = encodeFileReady(filename, ev.timestamp())
		if err != nil {
			return err
		}
	}

	resp, err := h.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %s", resp.Status)
	}
	return nil
}

// writeMarker appends one notification record to the session's marker file:
// the artifact filename and a unix timestamp, tab-separated, one line per
// notification.
func (h *Hub) writeMarker(id, filename string, ts float64) error {
	path := filepath.Join(h.markerDir, id+"_notification.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\t%.3f\n", filename, ts)
	return err
}
