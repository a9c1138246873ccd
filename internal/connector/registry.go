package connector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/netvault/pkg/models"
)

var (
	// ErrUnknownKind is returned when no factory is registered for a connector type.
	ErrUnknownKind = errors.New("unknown connector type")

	// ErrDuplicateKind is returned when a connector type is registered twice.
	ErrDuplicateKind = errors.New("connector type already registered")
)

// Factory builds a connector for a target. Construction must not perform I/O.
type Factory func(t Target, logger *zap.Logger) (Connector, error)

// Registry maps connector kinds to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.ConnectorKind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.ConnectorKind]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind models.ConnectorKind, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("register %q: %w", kind, ErrDuplicateKind)
	}
	r.factories[kind] = f
	return nil
}

// Lookup returns the factory for a stored connector_type value.
func (r *Registry) Lookup(connectorType string) (Factory, error) {
	kind, ok := models.ParseConnectorKind(connectorType)
	if !ok {
		return nil, fmt.Errorf("%q: %w", connectorType, ErrUnknownKind)
	}
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", connectorType, ErrUnknownKind)
	}
	return f, nil
}

// New builds a connector for connectorType.
func (r *Registry) New(connectorType string, t Target, logger *zap.Logger) (Connector, error) {
	f, err := r.Lookup(connectorType)
	if err != nil {
		return nil, err
	}
	return f(t, logger)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []models.ConnectorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]models.ConnectorKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
