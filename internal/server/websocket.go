package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/livetemplate/widgetbridge/internal/session"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// MessageEnvelope is one message of the session protocol.
//
// Client to server actions: "widget" (a host widget moved; ID is the element,
// Data its new value), "componentReady" (a component iframe completed the
// ready handshake) and "componentValue" (a component reported a value).
// Server to client actions: "render" (Data is {"html": ...}), "reload" and
// "error" (Data is {"message": ...}).
type MessageEnvelope struct {
	Action string          `json:"action"`
	ID     string          `json:"id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(action, id string, data any) (MessageEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return MessageEnvelope{}, err
	}
	return MessageEnvelope{Action: action, ID: id, Data: raw}, nil
}

// client is one connected browser tab and the session it drives.
type client struct {
	conn    *websocket.Conn
	mu      sync.Mutex // Serializes writes
	session *session.Session
	route   *Route
	limiter *rate.Limiter
	debug   bool
}

func (c *client) send(envelope MessageEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", envelope.Action, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	if c.debug {
		log.Printf("[WS] Sent %s (%d bytes) to session %s", envelope.Action, len(data), c.session.ID)
	}
	return nil
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	c.conn.Close()
}

// serveWebSocket starts a session for the page named by the "page" query
// parameter and runs its protocol until the tab disconnects.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("page")
	if path == "" {
		path = "/"
	}
	route, ok := s.route(path)
	if !ok {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.Create(route.Pattern)
	defer s.sessions.Remove(sess.ID)

	c := &client{
		conn:    conn,
		session: sess,
		route:   route,
		limiter: rate.NewLimiter(rate.Limit(s.config.RateLimit.GetEventsPerSecond()), s.config.RateLimit.GetBurst()),
		debug:   s.debug,
	}

	s.registerClient(c)
	defer s.unregisterClient(c)

	if s.debug {
		log.Printf("[WS] Client connected: %s (session %s, page %s)", conn.RemoteAddr(), sess.ID, route.Pattern)
	}

	s.rerun(c, "")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close: %v", err)
			}
			break
		}

		if s.debug {
			log.Printf("[WS] Received: %s", message)
		}

		s.handleMessage(c, message)
	}

	if s.debug {
		log.Printf("[WS] Client disconnected: %s", conn.RemoteAddr())
	}
}

// handleMessage applies one client event. Malformed messages are logged and
// dropped; the connection stays open.
func (s *Server) handleMessage(c *client, message []byte) {
	var envelope MessageEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		log.Printf("[WS] Failed to parse message: %v", err)
		return
	}

	if !c.limiter.Allow() {
		s.sendError(c, "rate limit exceeded")
		return
	}

	if envelope.ID == "" {
		log.Printf("[WS] %s message without element ID", envelope.Action)
		return
	}

	data := envelope.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	switch envelope.Action {
	case "widget", "componentValue":
		c.session.SetValue(envelope.ID, data)
		s.rerun(c, envelope.ID)

	case "componentReady":
		c.session.MarkReady(envelope.ID)
		if s.debug {
			log.Printf("[WS] Component %s ready in session %s", envelope.ID, c.session.ID)
		}

	default:
		log.Printf("[WS] Unknown action: %s", envelope.Action)
	}
}

// rerun executes the page script for the client's session and pushes the
// rendered body.
func (s *Server) rerun(c *client, trigger string) {
	res, err := c.session.Rerun(c.route.Script, trigger)
	if err != nil {
		log.Printf("[WS] Run failed for session %s: %v", c.session.ID, err)
		s.sendError(c, err.Error())
		return
	}

	msg, err := newEnvelope("render", "", map[string]string{"html": res.HTML})
	if err != nil {
		log.Printf("[WS] Failed to marshal render: %v", err)
		return
	}
	if err := c.send(msg); err != nil {
		log.Printf("[WS] Failed to send render: %v", err)
	}
}

func (s *Server) sendError(c *client, message string) {
	msg, err := newEnvelope("error", "", map[string]string{"message": message})
	if err != nil {
		return
	}
	if err := c.send(msg); err != nil {
		log.Printf("[WS] Failed to send error: %v", err)
	}
}
