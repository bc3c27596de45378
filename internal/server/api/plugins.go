package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/fingers/internal/plugin"
)

// PluginHandler lists discovered plugins. POST /api/plugins/rescan
// rediscovers them.
type PluginHandler struct {
	plugins *plugin.Manager
}

// NewPluginHandler returns a plugin handler.
func NewPluginHandler(m *plugin.Manager) *PluginHandler {
	return &PluginHandler{plugins: m}
}

type listPluginsResponse struct {
	Plugins []plugin.Manifest `json:"plugins"`
	Dir     string            `json:"dir"`
}

func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch sub := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/plugins"), "/"); {
	case sub == "" && r.Method == http.MethodGet:
		h.list(w)
	case sub == "rescan" && r.Method == http.MethodPost:
		if err := h.plugins.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
		h.list(w)
	case sub == "" || sub == "rescan":
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *PluginHandler) list(w http.ResponseWriter) {
	list := h.plugins.List()
	resp := listPluginsResponse{
		Plugins: make([]plugin.Manifest, 0, len(list)),
		Dir:     h.plugins.PluginDir(),
	}
	for _, p := range list {
		resp.Plugins = append(resp.Plugins, p.Manifest)
	}
	writeJSON(w, http.StatusOK, resp)
}
