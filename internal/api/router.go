// Package api exposes the engine over HTTP for the local UI and CLI.
package api

import (
	"net/http"

	"github.com/confdrift/confdrift/internal/engine"
	"github.com/confdrift/confdrift/internal/websocket"
)

// Router handles HTTP routing
type Router struct {
	mux    *http.ServeMux
	engine *engine.Engine
	wsHub  *websocket.Hub
}

// NewRouter creates a new router instance
func NewRouter(eng *engine.Engine, wsHub *websocket.Hub) http.Handler {
	r := &Router{
		mux:    http.NewServeMux(),
		engine: eng,
		wsHub:  wsHub,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	profileHandlers := NewProfileHandlers(r.engine)
	watchHandlers := NewWatchHandlers(r.engine, r.wsHub)
	changeHandlers := NewChangeHandlers(r.engine)

	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/version", r.handleVersion)
	r.mux.HandleFunc("/api/tools", r.handleTools)

	// Profile routes
	r.mux.HandleFunc("/api/profiles", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			profileHandlers.HandleList(w, req)
		case http.MethodPost:
			profileHandlers.HandleSave(w, req)
		case http.MethodDelete:
			profileHandlers.HandleDelete(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/profiles/activate", requireMethod(http.MethodPost, profileHandlers.HandleActivate))

	// Watch routes
	r.mux.HandleFunc("/api/watch/config", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			watchHandlers.HandleGetConfig(w, req)
		case http.MethodPut:
			watchHandlers.HandleUpdateConfig(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/watch/pending", requireMethod(http.MethodGet, watchHandlers.HandlePending))
	r.mux.HandleFunc("/api/watch/scan", requireMethod(http.MethodPost, watchHandlers.HandleScan))
	r.mux.HandleFunc("/api/watch/allow", requireMethod(http.MethodPost, watchHandlers.HandleAllow))
	r.mux.HandleFunc("/api/watch/block", requireMethod(http.MethodPost, watchHandlers.HandleBlock))

	// Change log routes
	r.mux.HandleFunc("/api/changes", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			changeHandlers.HandlePage(w, req)
		case http.MethodDelete:
			changeHandlers.HandleClear(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// WebSocket endpoint
	r.mux.HandleFunc("/ws", r.wsHub.HandleWebSocket)
}

func requireMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, req)
	}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
