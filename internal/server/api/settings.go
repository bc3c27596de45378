package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/ayusman/fingers/internal/app"
	"github.com/ayusman/fingers/internal/store"
)

// SettingsHandler serves /api/settings. PUT takes a JSON object of string
// values; every key is validated before any is written.
type SettingsHandler struct {
	store    *store.Store
	onChange func(map[string]string)
}

// NewSettingsHandler returns a settings handler. onChange, if set, receives
// the values written by each successful PUT.
func NewSettingsHandler(s *store.Store, onChange func(map[string]string)) *SettingsHandler {
	return &SettingsHandler{store: s, onChange: onChange}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut, http.MethodPatch:
		h.put(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter) {
	all, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: settings are string values")
		return
	}
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := app.ParseSetting(k, values[k]); !ok {
			writeError(w, http.StatusBadRequest, "Invalid setting "+k+"="+values[k])
			return
		}
	}

	for _, k := range keys {
		if err := h.store.Settings().Set(k, values[k]); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}
	if h.onChange != nil {
		h.onChange(values)
	}
	h.get(w)
}
