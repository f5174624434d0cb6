package server

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/livetemplate/widgetbridge/internal/assets"
	"github.com/livetemplate/widgetbridge/internal/bridge"
	"github.com/livetemplate/widgetbridge/internal/config"
	"github.com/livetemplate/widgetbridge/internal/page"
	"github.com/livetemplate/widgetbridge/internal/session"
)

// Route is a page served by the host.
type Route struct {
	Pattern string      // URL path (e.g., "/bridge")
	Title   string      // Navigation label
	Script  page.Script // Re-run on every interaction of a session
}

// Server is the widgetbridge host page server.
type Server struct {
	config   *config.Config
	registry *bridge.Registry
	sessions *session.Manager
	routes   []*Route
	mu       sync.RWMutex
	clients  map[*client]bool // Connected WebSocket clients
	connMu   sync.RWMutex     // Separate mutex for clients
	watcher  *Watcher         // File watcher for live reload
	debug    bool
}

// New creates a server for the given configuration and component registry.
func New(cfg *config.Config, registry *bridge.Registry) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		config:   cfg,
		registry: registry,
		sessions: session.NewManager(cfg.Server.Debug),
		clients:  make(map[*client]bool),
		debug:    cfg.Server.Debug,
	}
}

// Handle registers a page script at pattern. Registering the same pattern
// again replaces the script.
func (s *Server) Handle(pattern, title string, script page.Script) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.routes {
		if r.Pattern == pattern {
			r.Title = title
			r.Script = script
			return
		}
	}
	s.routes = append(s.routes, &Route{Pattern: pattern, Title: title, Script: script})
}

// Routes returns the registered pages in registration order.
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

// Sessions returns the live session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

func (s *Server) route(path string) (*Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.Pattern == path {
			return r, true
		}
	}
	return nil, false
}

// Handler returns the server wrapped in its middleware chain: security
// headers, per-IP rate limiting and, when enabled, gzip compression. The
// rate limiter's cleanup goroutine stops when ctx is cancelled.
func (s *Server) Handler(ctx context.Context) http.Handler {
	var h http.Handler = s
	if s.config.Features.Compression {
		h = WithCompression(h)
	}
	limit, _ := RateLimitMiddleware(ctx, s.config.RateLimit.GetEventsPerSecond(), s.config.RateLimit.GetBurst(), 0)
	h = limit(h)
	return SecurityHeadersMiddleware(s.frameSources())(h)
}

// frameSources lists the origins component iframes are loaded from.
func (s *Server) frameSources() []string {
	var out []string
	if s.registry == nil {
		return out
	}
	for _, c := range s.registry.Components() {
		if c.URL != "" {
			out = append(out, originOf(c.URL))
		}
	}
	return out
}

// originOf trims a URL to scheme://host[:port].
func originOf(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return url
	}
	if j := strings.Index(url[i+3:], "/"); j >= 0 {
		return url[:i+3+j]
	}
	return url
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Serve WebSocket endpoint
	if r.URL.Path == "/ws" {
		s.serveWebSocket(w, r)
		return
	}

	// Serve assets
	if strings.HasPrefix(r.URL.Path, "/assets/") {
		s.serveAsset(w, r)
		return
	}

	// Serve bundled component frontends
	if strings.HasPrefix(r.URL.Path, bridge.MountPrefix) {
		s.serveComponent(w, r)
		return
	}

	if route, ok := s.route(r.URL.Path); ok {
		s.servePage(w, r, route)
		return
	}

	// No route found - redirect to home page instead of 404
	if _, ok := s.route("/"); ok && r.URL.Path != "/" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.NotFound(w, r)
}

// serveAsset serves embedded client assets.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/assets/")

	var (
		data        []byte
		err         error
		contentType string
	)
	switch path {
	case assets.ClientJS:
		data, err = assets.GetClientJS()
		contentType = "application/javascript"
	case assets.ClientCSS:
		data, err = assets.GetClientCSS()
		contentType = "text/css"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// serveComponent serves a component frontend declared with a bundled FS at
// /component/<name>/.
func (s *Server) serveComponent(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, bridge.MountPrefix)
	name, _, _ := strings.Cut(rest, "/")

	if s.registry == nil {
		http.NotFound(w, r)
		return
	}
	c, ok := s.registry.Lookup(name)
	if !ok || c.FS == nil {
		http.NotFound(w, r)
		return
	}
	if rest == name {
		http.Redirect(w, r, bridge.MountPrefix+name+"/", http.StatusMovedPermanently)
		return
	}

	http.StripPrefix(bridge.MountPrefix+name, http.FileServer(http.FS(c.FS))).ServeHTTP(w, r)
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="/assets/widgetbridge-client.css">
</head>
<body data-debug="{{.Debug}}">
  <div id="wb-status" hidden></div>
  {{- if gt (len .Routes) 1}}
  <nav class="wb-nav">
    {{- range .Routes}}
    <a href="{{.Pattern}}" aria-current="{{if eq .Pattern $.Current}}page{{else}}false{{end}}">{{.Title}}</a>
    {{- end}}
  </nav>
  {{- end}}
  <main id="wb-root"></main>
  <script src="/assets/widgetbridge-client.js"></script>
</body>
</html>
`))

// servePage serves the document shell. The body is filled over the session
// WebSocket once the script has run.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, route *Route) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	title := s.config.Title
	if title == "" {
		title = route.Title
	}

	err := documentTemplate.Execute(w, struct {
		Title   string
		Debug   bool
		Routes  []*Route
		Current string
	}{title, s.debug, s.Routes(), route.Pattern})
	if err != nil {
		log.Printf("[Server] Failed to render %s: %v", route.Pattern, err)
	}
}

// registerClient adds a WebSocket client to the tracked connections.
func (s *Server) registerClient(c *client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.clients[c] = true
	if s.debug {
		log.Printf("[Server] WebSocket connection registered: %d active connections", len(s.clients))
	}
}

// unregisterClient removes a WebSocket client from tracked connections.
func (s *Server) unregisterClient(c *client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.clients, c)
	if s.debug {
		log.Printf("[Server] WebSocket connection unregistered: %d active connections", len(s.clients))
	}
}

// BroadcastReload tells every connected tab to reload. Each tab starts a new
// session; widget state does not carry over.
func (s *Server) BroadcastReload(filePath string) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	msg, err := newEnvelope("reload", "", map[string]string{"filePath": filePath})
	if err != nil {
		log.Printf("[Server] Failed to marshal reload message: %v", err)
		return
	}

	log.Printf("[Server] Broadcasting reload for %s to %d connections", filePath, len(s.clients))

	for c := range s.clients {
		if err := c.send(msg); err != nil {
			log.Printf("[Server] Failed to send reload to connection: %v", err)
		}
	}
}

// EnableWatch watches dir and calls onChange, then broadcasts a reload, for
// every changed widget source or config file.
func (s *Server) EnableWatch(dir string, onChange func(string) error) error {
	watcher, err := NewWatcher(dir, func(filePath string) error {
		log.Printf("[Watch] File changed: %s", filePath)

		if onChange != nil {
			if err := onChange(filePath); err != nil {
				return fmt.Errorf("failed to reload %s: %w", filePath, err)
			}
		}

		// Broadcast reload to all connected clients
		s.BroadcastReload(filePath)

		return nil
	}, s.debug)

	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()

	log.Printf("[Watch] File watcher started for %s", dir)
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// Close disconnects every WebSocket client and stops the watcher.
func (s *Server) Close() error {
	s.connMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.connMu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	return s.StopWatch()
}
