package plugin

import (
	"math"

	"github.com/kittclouds/memoria/internal/store"
)

// Memory is the permission-gated facade handed to plugin handlers.
// Every method checks the caller's granted permission before
// delegating to the underlying store, denying with ErrPermissionDenied
// when the grant is insufficient (§4.8).
type Memory interface {
	Stats(owner string) (Stats, error)
	ListEntities(owner string) ([]*store.Entity, error)
	CreateView(v *store.DerivedView) error
	CreateEvent(e *store.EventMemory) error
}

// Stats is the read-only summary ReadOnly-tier plugins may request.
type Stats struct {
	EntityCount int
	EventCount  int
}

// memoryFacade is the Memory implementation the runtime constructs per
// plugin invocation, closed over the plugin's granted permission.
type memoryFacade struct {
	store      store.Storer
	pluginID   string
	permission Permission
}

// NewMemory builds the Memory facade a plugin with the given grant
// may use against s.
func NewMemory(s store.Storer, pluginID string, granted Permission) Memory {
	return &memoryFacade{store: s, pluginID: pluginID, permission: granted}
}

func (m *memoryFacade) Stats(owner string) (Stats, error) {
	if !m.permission.satisfies(ReadOnly) {
		return Stats{}, ErrPermissionDenied(m.pluginID, ReadOnly)
	}
	entities, err := m.store.ListEntities(owner)
	if err != nil {
		return Stats{}, err
	}
	events, err := m.store.ListEventsInWindow(owner, 0, math.MaxInt64)
	if err != nil {
		return Stats{}, err
	}
	return Stats{EntityCount: len(entities), EventCount: len(events)}, nil
}

func (m *memoryFacade) ListEntities(owner string) ([]*store.Entity, error) {
	if !m.permission.satisfies(ReadWriteDerived) {
		return nil, ErrPermissionDenied(m.pluginID, ReadWriteDerived)
	}
	return m.store.ListEntities(owner)
}

func (m *memoryFacade) CreateView(v *store.DerivedView) error {
	if !m.permission.satisfies(ReadWriteDerived) {
		return ErrPermissionDenied(m.pluginID, ReadWriteDerived)
	}
	return m.store.CreateView(v)
}

func (m *memoryFacade) CreateEvent(e *store.EventMemory) error {
	if !m.permission.satisfies(ReadWriteEvents) {
		return ErrPermissionDenied(m.pluginID, ReadWriteEvents)
	}
	return m.store.PutEvents([]*store.EventMemory{e})
}
