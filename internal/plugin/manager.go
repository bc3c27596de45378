package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ManifestFile is the manifest name inside each plugin directory.
const ManifestFile = "plugin.json"

// ErrPluginNotFound is returned for unknown plugin names.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager holds the plugins found under a directory.
type Manager struct {
	dir     string
	log     logrus.FieldLogger
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager returns a manager for plugins under dir.
func NewManager(dir string, log logrus.FieldLogger) *Manager {
	return &Manager{
		dir:     dir,
		log:     log.WithField("component", "plugins"),
		plugins: make(map[string]*Plugin),
	}
}

// Discover rescans the directory. Each subdirectory with a valid manifest
// is a plugin; broken ones are logged and skipped. A missing directory
// yields no plugins.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.dir)
	switch {
	case os.IsNotExist(err):
		entries = nil
	case err != nil:
		return errors.Wrapf(err, "read plugin dir %s", m.dir)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := loadPlugin(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				m.log.WithError(err).WithField("dir", entry.Name()).Warn("skipping plugin")
			}
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.log.WithField("count", len(found)).Info("plugins discovered")
	return nil
}

func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs name and executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns the plugin called name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, errors.Wrap(ErrPluginNotFound, name)
	}
	return p, nil
}

// List returns the plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// PluginDir returns the scanned directory.
func (m *Manager) PluginDir() string {
	return m.dir
}
