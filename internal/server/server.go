// Package server provides the HTTP API, websocket hub and MJPEG preview of
// the fingers service.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/fingers/internal/app"
	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/server/api"
	"github.com/ayusman/fingers/internal/store"
)

// Service is the detection service as seen by the API.
type Service interface {
	Enabled() bool
	SetEnabled(enabled bool)
	ApplySettings(values map[string]string)
	Status() app.Stats
}

// Config holds the server configuration. Routes whose collaborators are
// nil are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Service   Service
	Plugins   *plugin.Manager
	Hub       *Hub
	Frames    *Frames
	Logger    logrus.FieldLogger
}

// Server is the HTTP front end.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logrus.FieldLogger
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger.WithField("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Service != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	if st := s.config.Store; st != nil {
		bindings := api.NewBindingHandler(st, s.config.Plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		var onChange func(map[string]string)
		if s.config.Service != nil {
			onChange = s.config.Service.ApplySettings
		}
		s.mux.Handle("/api/settings", api.NewSettingsHandler(st, onChange))
		s.mux.Handle("/api/detections", api.NewDetectionHandler(st))
	}

	if s.config.Plugins != nil {
		plugins := api.NewPluginHandler(s.config.Plugins)
		s.mux.Handle("/api/plugins", plugins)
		s.mux.Handle("/api/plugins/", plugins)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/ws", NewWSHandler(s.config.Hub, s.config.Logger))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

type statusResponse struct {
	app.Stats
	Clients int `json:"clients"`
}

// handleStatus reports service state on GET and toggles detection on
// POST {"enabled": bool}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": `expected {"enabled": bool}`})
			return
		}
		s.config.Service.SetEnabled(*req.Enabled)
		if st := s.config.Store; st != nil {
			if err := st.Settings().Set(store.SettingEnabled, boolString(*req.Enabled)); err != nil {
				s.log.WithError(err).Warn("persist enabled flag")
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{Stats: s.config.Service.Status()}
	if s.config.Hub != nil {
		resp.Clients = s.config.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
