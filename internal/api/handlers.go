package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/engine"
	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
	"github.com/confdrift/confdrift/internal/watch"
	"github.com/confdrift/confdrift/internal/websocket"
)

// Version is stamped by the build; the CLI overrides it at startup.
var Version = "dev"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cferrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cferrors.ErrInvalidFormat), errors.Is(err, cferrors.ErrParse):
		status = http.StatusUnprocessableEntity
	}
	var partial *cferrors.PartialWriteError
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":        err.Error(),
			"failed_files": partial.FailedFiles(),
			"wrote_files":  partial.Succeeded,
		})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"ws_clients": r.wsHub.ClientCount(),
	})
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (r *Router) handleTools(w http.ResponseWriter, req *http.Request) {
	type toolInfo struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		ConfigDir string   `json:"config_dir"`
		Files     []string `json:"files"`
	}
	out := make([]toolInfo, 0, len(r.engine.Tools()))
	for _, t := range r.engine.Tools() {
		info := toolInfo{ID: string(t.ID), Name: t.Name, ConfigDir: t.ConfigDir}
		for _, f := range t.Files {
			info.Files = append(info.Files, f.Name)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// toolParam resolves the required ?tool= query parameter.
func toolParam(req *http.Request) (tools.ID, bool) {
	id := tools.ID(req.URL.Query().Get("tool"))
	if id == "" {
		return "", false
	}
	return id, true
}

// ProfileHandlers serves the saved-profile endpoints.
type ProfileHandlers struct {
	engine *engine.Engine
}

// NewProfileHandlers creates a new handler
func NewProfileHandlers(eng *engine.Engine) *ProfileHandlers {
	return &ProfileHandlers{engine: eng}
}

// HandleList returns the saved profiles for a tool.
func (h *ProfileHandlers) HandleList(w http.ResponseWriter, req *http.Request) {
	id, ok := toolParam(req)
	if !ok {
		http.Error(w, "tool parameter required", http.StatusBadRequest)
		return
	}
	list, err := h.engine.ListProfiles(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type saveProfileRequest struct {
	Tool    string `json:"tool_id"`
	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model,omitempty"`
}

// HandleSave saves the posted values as a named profile and activates them.
func (h *ProfileHandlers) HandleSave(w http.ResponseWriter, req *http.Request) {
	var input saveProfileRequest
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Tool == "" || input.Name == "" {
		http.Error(w, "tool_id and name are required", http.StatusBadRequest)
		return
	}
	if input.APIKey == "" || input.BaseURL == "" {
		http.Error(w, "api_key and base_url are required", http.StatusBadRequest)
		return
	}
	v := toolcfg.Values{APIKey: input.APIKey, BaseURL: input.BaseURL, Model: input.Model}
	if err := h.engine.SaveProfile(tools.ID(input.Tool), input.Name, v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type activateProfileRequest struct {
	Tool string `json:"tool_id"`
	Name string `json:"name"`
}

// HandleActivate switches the tool's active config to a saved profile.
func (h *ProfileHandlers) HandleActivate(w http.ResponseWriter, req *http.Request) {
	var input activateProfileRequest
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Tool == "" || input.Name == "" {
		http.Error(w, "tool_id and name are required", http.StatusBadRequest)
		return
	}
	if err := h.engine.ActivateProfile(tools.ID(input.Tool), input.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

// HandleDelete removes a saved profile.
func (h *ProfileHandlers) HandleDelete(w http.ResponseWriter, req *http.Request) {
	id, ok := toolParam(req)
	if !ok {
		http.Error(w, "tool parameter required", http.StatusBadRequest)
		return
	}
	name := req.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name parameter required", http.StatusBadRequest)
		return
	}
	if err := h.engine.DeleteProfile(id, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// WatchHandlers serves the watch-config and drift-resolution endpoints.
// Resolutions are announced on the hub so open UI clients can drop their
// pending-change banners.
type WatchHandlers struct {
	engine *engine.Engine
	hub    *websocket.Hub
}

// NewWatchHandlers creates a new handler
func NewWatchHandlers(eng *engine.Engine, hub *websocket.Hub) *WatchHandlers {
	return &WatchHandlers{engine: eng, hub: hub}
}

// HandleGetConfig returns the current watch configuration.
func (h *WatchHandlers) HandleGetConfig(w http.ResponseWriter, req *http.Request) {
	cfg, err := h.engine.GetWatchConfig()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleUpdateConfig persists a new watch configuration.
func (h *WatchHandlers) HandleUpdateConfig(w http.ResponseWriter, req *http.Request) {
	var cfg watch.Config
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if cfg.Mode != watch.ModeDefault && cfg.Mode != watch.ModeFull {
		http.Error(w, "mode must be \"default\" or \"full\"", http.StatusBadRequest)
		return
	}
	if err := h.engine.UpdateWatchConfig(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandlePending returns the tool's unresolved external change, if any.
func (h *WatchHandlers) HandlePending(w http.ResponseWriter, req *http.Request) {
	id, ok := toolParam(req)
	if !ok {
		http.Error(w, "tool parameter required", http.StatusBadRequest)
		return
	}
	change := h.engine.PendingChange(id)
	if change == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pending": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": change})
}

// HandleScan runs one immediate scan for a tool.
func (h *WatchHandlers) HandleScan(w http.ResponseWriter, req *http.Request) {
	id, ok := toolParam(req)
	if !ok {
		http.Error(w, "tool parameter required", http.StatusBadRequest)
		return
	}
	change, err := h.engine.ScanOnce(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"change": change})
}

type resolveRequest struct {
	Tool string `json:"tool_id"`
}

func (h *WatchHandlers) resolve(w http.ResponseWriter, req *http.Request, action string, fn func(tools.ID) error) {
	var input resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Tool == "" {
		http.Error(w, "tool_id is required", http.StatusBadRequest)
		return
	}
	if err := fn(tools.ID(input.Tool)); err != nil {
		writeError(w, err)
		return
	}
	h.hub.BroadcastResolution(input.Tool, action)
	writeJSON(w, http.StatusOK, map[string]string{"status": action})
}

// HandleAllow accepts the pending external change.
func (h *WatchHandlers) HandleAllow(w http.ResponseWriter, req *http.Request) {
	h.resolve(w, req, "allowed", h.engine.Allow)
}

// HandleBlock rejects the pending external change and restores managed
// fields.
func (h *WatchHandlers) HandleBlock(w http.ResponseWriter, req *http.Request) {
	h.resolve(w, req, "blocked", h.engine.Block)
}

// ChangeHandlers serves the change-log endpoints.
type ChangeHandlers struct {
	engine *engine.Engine
}

// NewChangeHandlers creates a new handler
func NewChangeHandlers(eng *engine.Engine) *ChangeHandlers {
	return &ChangeHandlers{engine: eng}
}

// HandlePage returns one page of change records, newest first.
func (h *ChangeHandlers) HandlePage(w http.ResponseWriter, req *http.Request) {
	page := queryInt(req, "page", 1)
	pageSize := queryInt(req, "page_size", 20)
	records, total, err := h.engine.GetChangeLogPage(page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// HandleClear removes change records, all of them or one tool's.
func (h *ChangeHandlers) HandleClear(w http.ResponseWriter, req *http.Request) {
	id := tools.ID(req.URL.Query().Get("tool"))
	if err := h.engine.ClearChangeLogs(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
