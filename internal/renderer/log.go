package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"babylon/internal/events"
	"babylon/internal/logging"
)

// logRenderer appends one JSON line per event to w (typically
// <gen>/run.txt), and optionally fans each line out live to any websocket
// clients tailing it. The line is written to w before any tailer is sent
// it; each tailer send is synchronous with a one-second write deadline,
// and a tailer whose send fails is disconnected.
type logRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	logger logging.Logger

	server   *http.Server
	listener net.Listener

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newLogRenderer(w io.Writer, tailAddr string, logger logging.Logger) (*logRenderer, error) {
	r := &logRenderer{
		w:       w,
		logger:  logging.OrNop(logger),
		clients: make(map[*websocket.Conn]struct{}),
	}
	if tailAddr == "" {
		return r, nil
	}

	listener, err := net.Listen("tcp", tailAddr)
	if err != nil {
		return nil, fmt.Errorf("renderer: tail-follow listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/tail", r.handleTail)
	r.server = &http.Server{Handler: mux}
	r.listener = listener
	go func() {
		if err := r.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			r.logger.Error("renderer: tail-follow server stopped: %v", err)
		}
	}()
	return r, nil
}

func (r *logRenderer) handleTail(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("renderer: tail-follow upgrade failed: %v", err)
		return
	}
	r.clientsMu.Lock()
	r.clients[conn] = struct{}{}
	r.clientsMu.Unlock()

	// Drain and discard anything the client sends; we only ever push.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				r.clientsMu.Lock()
				delete(r.clients, conn)
				r.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func (r *logRenderer) broadcast(line []byte) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for conn := range r.clients {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			delete(r.clients, conn)
			conn.Close()
		}
	}
}

type logLine struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data events.Event `json:"data"`
}

func (r *logRenderer) OnEvent(e events.Event) {
	encoded, err := json.Marshal(logLine{Type: e.EventType(), At: e.Timestamp(), Data: e})
	if err != nil {
		r.logger.Error("renderer: failed to encode event %s: %v", e.EventType(), err)
		return
	}
	encoded = append(encoded, '\n')

	r.mu.Lock()
	_, writeErr := r.w.Write(encoded)
	r.mu.Unlock()
	if writeErr != nil {
		r.logger.Error("renderer: failed to write log line: %v", writeErr)
	}

	r.broadcast(encoded)
}

func (r *logRenderer) Close() error {
	if r.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.server.Shutdown(ctx)
	}
	r.clientsMu.Lock()
	for conn := range r.clients {
		conn.Close()
	}
	r.clientsMu.Unlock()
	return nil
}
