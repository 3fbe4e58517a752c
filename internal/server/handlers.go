// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway accepts WebSocket peers and runs them against the shared Relay.
type Gateway struct {
	relay        *Relay
	upgrader     websocket.Upgrader
	maxLineLen   int
	writeTimeout time.Duration
	conns        *connTracker
	log          *slog.Logger
}

// NewGateway creates a Gateway feeding relay.
func NewGateway(relay *Relay, cfg *Config, log *slog.Logger) *Gateway {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	policy := newOriginPolicy(cfg.Origins(), log)
	return &Gateway{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		maxLineLen:   cfg.MaxLineLength,
		writeTimeout: cfg.WriteTimeout,
		conns:        newConnTracker(),
		log:          log,
	}
}

// WebSocketHandler upgrades the request and serves the connection as a peer
// session until it ends.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	lineConn := NewWebSocketLineConn(conn, g.maxLineLen, g.writeTimeout)
	if !g.conns.add(lineConn) {
		_ = conn.Close()
		return
	}
	defer g.conns.done(lineConn)

	g.relay.ServeConn(lineConn)
}

// HealthHandler reports the server status and the number of connected peers.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linechat relay is running with %d peers", g.relay.Registry().Len())
}

// TestPageHandler serves an HTML page that speaks the line protocol over the
// WebSocket endpoint.
func (g *Gateway) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		g.log.Error("Error writing HTML response", "error", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>linechat</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #lines { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        .notice { color: gray; }
    </style>
</head>
<body>
    <h1>linechat</h1>
    <div id="lines"></div>
    <input type="text" id="input" placeholder="Type a line..." size="60">
    <script>
        const lines = document.getElementById('lines');
        const input = document.getElementById('input');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

        function show(text) {
            const el = document.createElement('div');
            if (text.startsWith('[')) { el.className = 'notice'; }
            el.textContent = text;
            lines.appendChild(el);
            lines.scrollTop = lines.scrollHeight;
        }

        ws.onmessage = function(event) { show(event.data); };
        ws.onclose = function() { show('[connection closed]'); };

        input.addEventListener('keypress', function(e) {
            if (e.key === 'Enter' && ws.readyState === WebSocket.OPEN) {
                ws.send(input.value);
                show('me: ' + input.value);
                input.value = '';
            }
        });
    </script>
</body>
</html>`
