package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/store"
)

// BindingHandler serves /api/bindings and /api/bindings/{id}.
type BindingHandler struct {
	store   *store.Store
	plugins *plugin.Manager
}

// NewBindingHandler returns a binding handler. When plugins is set, new
// and updated bindings must name a discovered plugin and declared action.
func NewBindingHandler(s *store.Store, plugins *plugin.Manager) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/bindings"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		methodNotAllowed(w)
	}
}

type bindingRequest struct {
	Name    string          `json:"name"`
	Event   string          `json:"event"`
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Config  json.RawMessage `json:"config"`
	Enabled *bool           `json:"enabled"`
}

type listBindingsResponse struct {
	Bindings []*store.Binding `json:"bindings"`
	Events   []store.Event    `json:"events"`
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		bindings []*store.Binding
		err      error
	)
	if event := r.URL.Query().Get("event"); event != "" {
		bindings, err = h.store.Bindings().ListByEvent(store.Event(event))
	} else {
		bindings, err = h.store.Bindings().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}
	writeJSON(w, http.StatusOK, listBindingsResponse{Bindings: bindings, Events: store.Events()})
}

func (h *BindingHandler) get(w http.ResponseWriter, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	b := &store.Binding{
		Name:       req.Name,
		Event:      store.Event(req.Event),
		PluginName: req.Plugin,
		ActionName: req.Action,
		Config:     req.Config,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if msg := h.checkPlugin(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.Bindings().Create(b); err != nil {
		h.storeError(w, err, "Failed to create binding")
		return
	}
	if b.Config == nil {
		b.Config = json.RawMessage("{}")
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		b.Name = req.Name
	}
	if req.Event != "" {
		b.Event = store.Event(req.Event)
	}
	if req.Plugin != "" {
		b.PluginName = req.Plugin
	}
	if req.Action != "" {
		b.ActionName = req.Action
	}
	if req.Config != nil {
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}

	if msg := h.checkPlugin(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.Bindings().Update(b); err != nil {
		h.storeError(w, err, "Failed to update binding")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BindingHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		h.storeError(w, err, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkPlugin returns a client error message, or "" when b targets a known
// plugin action.
func (h *BindingHandler) checkPlugin(b *store.Binding) string {
	if h.plugins == nil || b.PluginName == "" {
		return ""
	}
	p, err := h.plugins.Get(b.PluginName)
	if err != nil {
		return "Plugin not found: " + b.PluginName
	}
	if len(p.Manifest.Actions) > 0 && !p.Manifest.HasAction(b.ActionName) {
		return "Plugin " + b.PluginName + " has no action " + b.ActionName
	}
	return ""
}

func (h *BindingHandler) storeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Binding not found")
	case errors.Is(err, store.ErrInvalidBinding):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
