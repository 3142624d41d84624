package controllers

import (
	"net/http"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general   *GeneralController
	streaming *StreamingController
	websocket *WebSocketController
}

// NewControllerRegistry creates a new controller registry over the shared
// dependency set.
func NewControllerRegistry(deps *Deps) *ControllerRegistry {
	return &ControllerRegistry{
		general:   NewGeneralController(deps),
		streaming: NewStreamingController(deps),
		websocket: NewWebSocketController(deps),
	}
}

// RegisterAllRoutes registers every controller's routes with the given mux:
// health and metrics, the per-path SSE streams, and the multiplexed
// WebSocket endpoint.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.streaming.RegisterRoutes(mux)
	r.websocket.RegisterRoutes(mux)
}
