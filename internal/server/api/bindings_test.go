package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/store"
)

func TestBindingHandler_CRUD(t *testing.T) {
	s := newTestStore(t)
	h := NewBindingHandler(s, nil)

	rec := do(h, http.MethodPost, "/api/bindings",
		`{"name":"point","event":"hand.move","plugin":"pointer","action":"move","config":{"mirror":true}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[store.Binding](t, rec)
	assert.Equal(t, "point", created.Name)
	assert.JSONEq(t, `{"mirror":true}`, string(created.Config))

	rec = do(h, http.MethodGet, "/api/bindings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listBindingsResponse](t, rec)
	require.Len(t, list.Bindings, 1)
	assert.Len(t, list.Events, 4)

	rec = do(h, http.MethodPut, "/api/bindings/"+created.ID, `{"action":"click","event":"hand.enter"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[store.Binding](t, rec)
	assert.Equal(t, "click", updated.ActionName)
	assert.Equal(t, store.EventHandEnter, updated.Event)

	rec = do(h, http.MethodGet, "/api/bindings?event=hand.enter", "")
	assert.Len(t, decode[listBindingsResponse](t, rec).Bindings, 1)

	rec = do(h, http.MethodDelete, "/api/bindings/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodDelete, "/api/bindings/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBindingHandler_Validation(t *testing.T) {
	h := NewBindingHandler(newTestStore(t), nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"event":`},
		{"unknown event", `{"event":"hand.wave","plugin":"p","action":"a"}`},
		{"missing plugin", `{"event":"hand.enter","action":"a"}`},
		{"missing action", `{"event":"hand.enter","plugin":"p"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/bindings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestBindingHandler_NotFound(t *testing.T) {
	h := NewBindingHandler(newTestStore(t), nil)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/bindings/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPut, "/api/bindings/nope", `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPatch, "/api/bindings", "").Code)
}

func TestBindingHandler_ChecksPlugins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "media"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "media", plugin.ManifestFile),
		[]byte(`{"name":"media","executable":"media","actions":["next"]}`), 0644))
	log, _ := test.NewNullLogger()
	m := plugin.NewManager(dir, log)
	require.NoError(t, m.Discover())

	h := NewBindingHandler(newTestStore(t), m)

	assert.Equal(t, http.StatusCreated,
		do(h, http.MethodPost, "/api/bindings", `{"event":"hands.two","plugin":"media","action":"next"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(h, http.MethodPost, "/api/bindings", `{"event":"hands.two","plugin":"media","action":"eject"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(h, http.MethodPost, "/api/bindings", `{"event":"hands.two","plugin":"lights","action":"on"}`).Code)
}
