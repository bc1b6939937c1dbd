package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ai-band/orchestrator/internal/generator"
	"github.com/ai-band/orchestrator/internal/session"
)

// Gateway accepts persistent plugin connections, attaches each to its
// session, pushes dispatcher-originated events out, and routes inbound
// messages (heartbeat, transport updates, generation requests) back into
// the hub. Exactly one reader loop runs per open connection.
type Gateway struct {
	registry *session.Registry
	gen      generator.Generator
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]string // open connections by plugin id
	down  bool

	genWG sync.WaitGroup
}

func NewGateway(registry *session.Registry, gen generator.Generator) *Gateway {
	return &Gateway{
		registry: registry,
		gen:      gen,
		conns:    make(map[*conn]string),
		upgrader: websocket.Upgrader{
			// Plugins are native processes, not browsers; origin checks
			// don't apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and runs the connection's reader loop until
// the peer disconnects or the gateway closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, pluginID string) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade for %s: %v", pluginID, err)
		return
	}

	c := newConn(wsConn)
	if !g.track(c, pluginID) {
		c.shutdown()
		return
	}

	// Register first so attach has a record to land on; an existing record
	// keeps its metadata (reconnects resume state).
	if _, ok := g.registry.Get(pluginID); !ok {
		g.registry.Register(pluginID, nil, "")
	}
	g.registry.AttachSocket(pluginID, c)
	log.Printf("plugin %s connected", pluginID)

	confirmed, _ := Message{
		Type: MsgConnectionConfirmed,
		Data: connectionConfirmedData{PluginID: pluginID, Status: "connected"},
	}.Encode()
	if err := c.Send(confirmed); err != nil {
		log.Printf("plugin %s: confirmation send failed: %v", pluginID, err)
	}

	g.readLoop(pluginID, c)

	// Disconnect demotes the session to registered-not-live; the record
	// itself survives for reconnects.
	g.registry.DetachSocket(pluginID)
	g.untrack(c)
	c.shutdown()
	log.Printf("plugin %s disconnected", pluginID)
}

// readLoop receives until the first unrecoverable read error.
func (g *Gateway) readLoop(pluginID string, c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		g.handleMessage(pluginID, c, data)
	}
}

func (g *Gateway) handleMessage(pluginID string, c *conn, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("plugin %s: malformed message: %v", pluginID, err)
		return
	}

	switch msg.Type {
	case MsgHeartbeat:
		g.registry.Touch(pluginID)
		var hb heartbeatData
		if err := json.Unmarshal(msg.Data, &hb); err != nil {
			log.Printf("plugin %s: bad heartbeat payload: %v", pluginID, err)
			return
		}
		reply, _ := Message{
			Type: MsgHeartbeatResponse,
			Data: heartbeatData{Timestamp: hb.Timestamp},
		}.Encode()
		if err := c.Send(reply); err != nil {
			log.Printf("plugin %s: heartbeat reply failed: %v", pluginID, err)
		}

	case MsgTransportUpdate:
		// Telemetry only; no reply.
		log.Printf("transport update from %s: %s", pluginID, msg.Data)

	case MsgGenerationRequest:
		var req generator.Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("plugin %s: bad generation request: %v", pluginID, err)
			return
		}
		req.PluginID = pluginID
		// Generation must not stall this connection's reader or anyone
		// else's; run it out of line and push the result back when done.
		g.genWG.Add(1)
		go func() {
			defer g.genWG.Done()
			res := g.gen.Generate(context.Background(), req)
			if !res.Success {
				log.Printf("generation for %s failed: %s", pluginID, res.Error)
			}
			complete, _ := Message{Type: MsgGenerationComplete, Data: res}.Encode()
			if err := c.Send(complete); err != nil {
				// Socket may be gone by the time generation finishes; the
				// result is discarded.
				log.Printf("plugin %s: generation result undeliverable: %v", pluginID, err)
			}
		}()

	default:
		log.Printf("plugin %s: unrecognized message type %q", pluginID, msg.Type)
	}
}

// track records an open connection; it refuses new connections once the
// gateway is closing.
func (g *Gateway) track(c *conn, pluginID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return false
	}
	g.conns[c] = pluginID
	return true
}

func (g *Gateway) untrack(c *conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c)
}

// ConnectionCount returns the number of open live-socket connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close stops accepting connections, closes every open socket (terminating
// the reader loops), and waits for in-flight generation requests to finish.
// Results arriving after their socket closed are discarded, not fatal.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.down = true
	conns := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
	g.genWG.Wait()
}
