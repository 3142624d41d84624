package controllers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/firehose-io/firehose/internal/session"
	"github.com/firehose-io/firehose/internal/stream"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// StreamingController serves the Server-Sent Events endpoints. Each URL path
// maps to exactly one stream kind; the subscription is fixed for the life of
// the request.
type StreamingController struct {
	deps *Deps
}

// NewStreamingController creates a new SSE controller.
func NewStreamingController(deps *Deps) *StreamingController {
	return &StreamingController{deps: deps}
}

// RegisterRoutes registers the SSE routes with the given mux.
func (c *StreamingController) RegisterRoutes(mux *http.ServeMux) {
	routes := map[string]func(*http.Request) (stream.Kind, stream.Params){
		"/api/v1/streaming/user":              fixedKind(stream.KindUser),
		"/api/v1/streaming/user/notification": fixedKind(stream.KindUserNotification),
		"/api/v1/streaming/direct":            fixedKind(stream.KindDirect),
		"/api/v1/streaming/public":            publicKind(stream.KindPublic, stream.KindPublicMedia),
		"/api/v1/streaming/public/local":      publicKind(stream.KindPublicLocal, stream.KindPublicLocalMedia),
		"/api/v1/streaming/public/remote":     publicKind(stream.KindPublicRemote, stream.KindPublicRemoteMedia),
		"/api/v1/streaming/hashtag":           hashtagKind(stream.KindHashtag),
		"/api/v1/streaming/hashtag/local":     hashtagKind(stream.KindHashtagLocal),
		"/api/v1/streaming/list":              listKind(),
	}
	for path, resolve := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			kind, params := resolve(r)
			c.stream(w, r, kind, params)
		})
	}
}

func fixedKind(kind stream.Kind) func(*http.Request) (stream.Kind, stream.Params) {
	return func(*http.Request) (stream.Kind, stream.Params) {
		return kind, stream.Params{}
	}
}

func publicKind(kind, mediaKind stream.Kind) func(*http.Request) (stream.Kind, stream.Params) {
	return func(r *http.Request) (stream.Kind, stream.Params) {
		q := r.URL.Query()
		k := kind
		if parseBool(q.Get("only_media")) {
			k = mediaKind
		}
		return k, stream.Params{AllowLocalOnly: parseBool(q.Get("allow_local_only"))}
	}
}

func hashtagKind(kind stream.Kind) func(*http.Request) (stream.Kind, stream.Params) {
	return func(r *http.Request) (stream.Kind, stream.Params) {
		return kind, stream.Params{Tag: r.URL.Query().Get("tag")}
	}
}

func listKind() func(*http.Request) (stream.Kind, stream.Params) {
	return func(r *http.Request) (stream.Kind, stream.Params) {
		return stream.KindList, stream.Params{List: r.URL.Query().Get("list")}
	}
}

func (c *StreamingController) stream(w http.ResponseWriter, r *http.Request, kind stream.Kind, params stream.Params) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := c.deps.connLogger("sse")

	identity, err := c.deps.identityFromToken(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	// Authorization failures must surface as a proper HTTP status, so the
	// request is validated before committing to the event-stream response.
	if err := stream.CheckScopes(kind, identity); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if _, err := c.deps.Resolver.Resolve(r.Context(), kind, identity, params); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	transport := &sseTransport{w: w, flusher: flusher}
	_ = transport.comment(":)\n")

	sess := session.New(identity, transport, c.deps.sessionOptions("eventsource", logger))
	defer sess.Close()

	if err := sess.SubscribeSystem(r.Context()); err != nil {
		logger.Error("system subscribe failed", logpkg.Err(err))
		return
	}
	if err := sess.Subscribe(r.Context(), kind, params); err != nil {
		logger.Error("subscribe failed", logpkg.Str("stream", kind.String()), logpkg.Err(err))
		return
	}

	heartbeat := time.NewTicker(c.deps.HeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case <-heartbeat.C:
			if err := transport.comment(":thump\n"); err != nil {
				return
			}
		}
	}
}

// sseTransport frames events per the EventSource wire format. The mutex
// serializes delivery goroutines against the heartbeat, and the closed flag
// fences writes once the handler is done with the ResponseWriter: the
// session closes the transport before the handler returns, and net/http
// reclaims the writer after that, so a delivery still in flight must not
// touch it.
type sseTransport struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// SendEvent implements session.Transport. SSE has no stream echo, so the
// stream name is ignored. Writes after Close are discarded.
func (t *sseTransport) SendEvent(_ []string, event, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if _, err := fmt.Fprintf(t.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close implements session.Transport. The response body is owned by the
// handler; Close only bars further writes, returning from the handler ends
// the stream.
func (t *sseTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *sseTransport) comment(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if _, err := fmt.Fprint(t.w, s); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}
