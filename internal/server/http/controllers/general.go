package controllers

import (
	"net/http"
)

// GeneralController handles the non-streaming endpoints: health and metrics.
type GeneralController struct {
	deps *Deps
}

// NewGeneralController creates a new general controller.
func NewGeneralController(deps *Deps) *GeneralController {
	return &GeneralController{deps: deps}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/streaming/health", c.handleHealth)
	mux.HandleFunc("/favicon.ico", c.handleFavicon)
	if c.deps.Metrics != nil {
		mux.Handle("/metrics", c.deps.Metrics.Handler())
	}
}

// handleHealth answers load-balancer probes. The body is plain text on
// purpose: probes match on "OK".
func (c *GeneralController) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write([]byte("OK"))
}

func (c *GeneralController) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
