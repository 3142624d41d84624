package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/firehose-io/firehose/internal/session"
	"github.com/firehose-io/firehose/internal/stream"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// WebSocketController serves the multiplexed WebSocket endpoint: one
// connection, any number of logical streams driven by subscribe and
// unsubscribe frames.
type WebSocketController struct {
	deps     *Deps
	upgrader websocket.Upgrader
}

// NewWebSocketController creates a new WebSocket controller.
func NewWebSocketController(deps *Deps) *WebSocketController {
	return &WebSocketController{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients connect from any web origin; tokens, not
			// origins, are the authentication boundary.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the WebSocket route with the given mux.
func (c *WebSocketController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/streaming", c.handleConnect)
}

// wsRequest is a client-to-server control frame.
type wsRequest struct {
	Type           string `json:"type"`
	Stream         string `json:"stream"`
	Tag            string `json:"tag"`
	List           string `json:"list"`
	AllowLocalOnly wsBool `json:"allow_local_only"`
}

// wsBool accepts both JSON booleans and the query-style string forms
// ("true"/"1") clients send in control frames.
type wsBool bool

func (b *wsBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*b = wsBool(s == "true" || s == "1")
	return nil
}

func (c *WebSocketController) handleConnect(w http.ResponseWriter, r *http.Request) {
	logger := c.deps.connLogger("websocket")

	// Browser WebSocket clients cannot set Authorization, so the token may
	// also ride in as the subprotocol; the handshake must echo it back.
	token := requestToken(r)
	responseHeader := http.Header{}
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		if token == "" {
			token = proto
		}
		responseHeader.Set("Sec-WebSocket-Protocol", proto)
	}

	identity, err := c.deps.identityFromToken(r.Context(), token)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		logger.Error("websocket upgrade failed", logpkg.Err(err))
		return
	}

	transport := &wsTransport{conn: conn}
	sess := session.New(identity, transport, c.deps.sessionOptions("websocket", logger))
	defer sess.Close()

	if err := sess.SubscribeSystem(r.Context()); err != nil {
		logger.Error("system subscribe failed", logpkg.Err(err))
		return
	}

	// A stream query parameter opens an initial subscription so plain
	// clients never need to speak the control protocol.
	if name := r.URL.Query().Get("stream"); name != "" {
		q := r.URL.Query()
		req := wsRequest{
			Stream:         name,
			Tag:            q.Get("tag"),
			List:           q.Get("list"),
			AllowLocalOnly: wsBool(parseBool(q.Get("allow_local_only"))),
		}
		if err := c.subscribe(r, sess, req); err != nil {
			transport.sendError(err)
		}
	}

	conn.SetPongHandler(func(string) error {
		transport.alive.Store(true)
		return nil
	})
	transport.alive.Store(true)
	go c.pingLoop(sess, transport)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			transport.sendError(&stream.ValidationError{Reason: "invalid frame"})
			continue
		}
		switch req.Type {
		case "subscribe":
			if err := c.subscribe(r, sess, req); err != nil {
				transport.sendError(err)
			}
		case "unsubscribe":
			if err := c.unsubscribe(r, sess, req); err != nil {
				transport.sendError(err)
			}
		default:
			transport.sendError(&stream.ValidationError{Reason: "unknown frame type: " + req.Type})
		}
	}
}

func (c *WebSocketController) subscribe(r *http.Request, sess *session.Session, req wsRequest) error {
	kind, ok := stream.KindFromName(req.Stream)
	if !ok {
		return &stream.UnknownStreamError{Name: req.Stream}
	}
	return sess.Subscribe(r.Context(), kind, stream.Params{
		Tag:            req.Tag,
		List:           req.List,
		AllowLocalOnly: bool(req.AllowLocalOnly),
	})
}

func (c *WebSocketController) unsubscribe(r *http.Request, sess *session.Session, req wsRequest) error {
	kind, ok := stream.KindFromName(req.Stream)
	if !ok {
		return &stream.UnknownStreamError{Name: req.Stream}
	}
	return sess.Unsubscribe(r.Context(), kind, stream.Params{Tag: req.Tag, List: req.List})
}

// pingLoop enforces liveness: a peer that misses a whole ping interval
// without ponging is torn down so its subscriptions release promptly.
func (c *WebSocketController) pingLoop(sess *session.Session, transport *wsTransport) {
	ticker := time.NewTicker(c.deps.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
			if !transport.alive.Load() {
				sess.Close()
				return
			}
			transport.alive.Store(false)
			deadline := time.Now().Add(c.deps.PingInterval)
			if err := transport.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				sess.Close()
				return
			}
		}
	}
}

// wsFrame is a server-to-client event frame.
type wsFrame struct {
	Stream  []string `json:"stream"`
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
}

// wsTransport adapts a websocket connection to session.Transport. The mutex
// serializes data frames; control frames go through WriteControl, which is
// safe to call concurrently.
type wsTransport struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	alive atomic.Bool
}

// SendEvent implements session.Transport.
func (t *wsTransport) SendEvent(stream []string, event, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(wsFrame{Stream: stream, Event: event, Payload: payload})
}

// Close implements session.Transport. Closing the connection also unblocks
// the read loop.
func (t *wsTransport) Close() error { return t.conn.Close() }

func (t *wsTransport) sendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteJSON(map[string]string{"error": err.Error()})
}
