// Package registry maps connector type names to factories and keeps a
// catalog of connector metadata for the CLI.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

// SourceFactory creates a source from its configuration.
type SourceFactory func(cfg *config.DBSourceConfig) (core.Source, error)

// DestinationFactory creates a sink from its configuration.
type DestinationFactory func(cfg *config.TPFSSinkConfig) (core.Destination, error)

// Registry holds the source and sink factories by connector name.
type Registry struct {
	mu           sync.RWMutex
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
}

var defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
	}
}

// log is resolved per call so registrations made from init functions do not
// pin the logger that existed before the CLI configured one.
func (r *Registry) log() *zap.Logger {
	return logger.Get().With(zap.String("component", "connector_registry"))
}

// RegisterSource adds a source factory. Names are unique.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.sources[name]; dup {
		return errors.Newf(errors.ErrorTypeConfig, "source connector %s already registered", name)
	}
	r.sources[name] = factory
	r.log().Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterDestination adds a sink factory. Names are unique.
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.destinations[name]; dup {
		return errors.Newf(errors.ErrorTypeConfig, "destination connector %s already registered", name)
	}
	r.destinations[name] = factory
	r.log().Debug("destination connector registered", zap.String("name", name))
	return nil
}

// CreateSource builds the named source from cfg.
func (r *Registry) CreateSource(name string, cfg *config.DBSourceConfig) (core.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source connector %s not found", name)
	}

	src, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TypeOf(err), "failed to create source connector %s", name)
	}
	return src, nil
}

// CreateDestination builds the named sink from cfg.
func (r *Registry) CreateDestination(name string, cfg *config.TPFSSinkConfig) (core.Destination, error) {
	r.mu.RLock()
	factory, ok := r.destinations[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "destination connector %s not found", name)
	}

	dst, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TypeOf(err), "failed to create destination connector %s", name)
	}
	return dst, nil
}

// RegisterSource adds a source factory to the process registry.
func RegisterSource(name string, factory SourceFactory) error {
	return defaultRegistry.RegisterSource(name, factory)
}

// RegisterDestination adds a sink factory to the process registry.
func RegisterDestination(name string, factory DestinationFactory) error {
	return defaultRegistry.RegisterDestination(name, factory)
}

// CreateSource builds a source from the process registry.
func CreateSource(name string, cfg *config.DBSourceConfig) (core.Source, error) {
	return defaultRegistry.CreateSource(name, cfg)
}

// CreateDestination builds a sink from the process registry.
func CreateDestination(name string, cfg *config.TPFSSinkConfig) (core.Destination, error) {
	return defaultRegistry.CreateDestination(name, cfg)
}

// ConnectorInfo describes a connector for `hydrator list`.
type ConnectorInfo struct {
	Name         string                 `json:"name"`
	Type         core.ConnectorType     `json:"type"`
	Description  string                 `json:"description"`
	Version      string                 `json:"version"`
	Capabilities []string               `json:"capabilities"`
	ConfigSchema map[string]interface{} `json:"config_schema"`
}

// ConnectorCatalog keeps connector descriptions by name.
type ConnectorCatalog struct {
	mu         sync.RWMutex
	connectors map[string]*ConnectorInfo
}

// NewConnectorCatalog returns an empty catalog.
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{connectors: make(map[string]*ConnectorInfo)}
}

// Register adds info. Names are unique.
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.connectors[info.Name]; dup {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s already in catalog", info.Name)
	}
	c.connectors[info.Name] = info
	return nil
}

// List returns the catalog ordered by name.
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

var defaultCatalog = NewConnectorCatalog()

// RegisterConnectorInfo adds info to the process catalog.
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return defaultCatalog.Register(info)
}

// ListConnectorInfo lists the process catalog.
func ListConnectorInfo() []*ConnectorInfo {
	return defaultCatalog.List()
}
