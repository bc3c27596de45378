package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Event is a change in the hands visible to the camera.
type Event string

// Events a binding can react to.
const (
	// EventHandEnter fires when hands appear after a frame with none.
	EventHandEnter Event = "hand.enter"
	// EventHandExit fires when the last hand leaves.
	EventHandExit Event = "hand.exit"
	// EventHandMove fires on every frame with at least one hand.
	EventHandMove Event = "hand.move"
	// EventTwoHands fires when a second hand appears.
	EventTwoHands Event = "hands.two"
)

// ErrInvalidBinding is returned for bindings that fail validation.
var ErrInvalidBinding = errors.New("invalid binding")

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	switch e {
	case EventHandEnter, EventHandExit, EventHandMove, EventTwoHands:
		return true
	}
	return false
}

// Events returns all known events.
func Events() []Event {
	return []Event{EventHandEnter, EventHandExit, EventHandMove, EventTwoHands}
}

// Binding runs a plugin action when an event fires.
type Binding struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Event      Event           `json:"event"`
	PluginName string          `json:"plugin"`
	ActionName string          `json:"action"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks the fields the schema cannot.
func (b *Binding) Validate() error {
	if !b.Event.Valid() {
		return errors.Wrapf(ErrInvalidBinding, "unknown event %q", b.Event)
	}
	if b.PluginName == "" || b.ActionName == "" {
		return errors.Wrap(ErrInvalidBinding, "plugin and action are required")
	}
	if len(b.Config) > 0 && !json.Valid(b.Config) {
		return errors.Wrap(ErrInvalidBinding, "config is not valid JSON")
	}
	return nil
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, name, event, plugin_name, action_name, config, enabled, created_at`

// Create validates b, assigns an ID if it has none and inserts it.
func (r *BindingRepository) Create(b *Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Name == "" {
		b.Name = string(b.Event) + " " + b.PluginName + "/" + b.ActionName
	}
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, string(b.Event), b.PluginName, b.ActionName, configText(b.Config), b.Enabled, b.CreatedAt,
	)
	return errors.Wrap(err, "insert binding")
}

// GetByID returns the binding with id or ErrNotFound.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// List returns all bindings, newest first.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY created_at DESC, rowid DESC`)
}

// ListByEvent returns the enabled bindings for event, oldest first so
// actions run in the order they were configured.
func (r *BindingRepository) ListByEvent(event Event) ([]*Binding, error) {
	return r.query(`SELECT `+bindingColumns+` FROM bindings
		WHERE event = ? AND enabled = 1 ORDER BY created_at ASC, rowid ASC`, string(event))
}

// Update replaces a binding's fields.
func (r *BindingRepository) Update(b *Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	result, err := r.db.Exec(
		`UPDATE bindings SET name = ?, event = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.Name, string(b.Event), b.PluginName, b.ActionName, configText(b.Config), b.Enabled, b.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update binding")
	}
	return requireRow(result)
}

// Delete removes a binding.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete binding")
	}
	return requireRow(result)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list bindings")
	}
	defer rows.Close()

	bindings := []*Binding{}
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (*Binding, error) {
	b := &Binding{}
	var event, config string
	var enabled int
	if err := row.Scan(&b.ID, &b.Name, &event, &b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Event = Event(event)
	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func configText(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
