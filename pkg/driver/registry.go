package driver

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

// Registry maps plugin identifiers to drivers.
type Registry struct {
	drivers map[string]Driver
	mu      sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Drivers register from init, before the CLI configures logging, so the
// logger is looked up on use.
func (r *Registry) log() *zap.Logger {
	return logger.Get().With(zap.String("component", "driver_registry"))
}

func registryKey(pluginType, pluginName string) string {
	if pluginType == "" {
		pluginType = DefaultPluginType
	}
	return strings.ToLower(pluginType) + "." + strings.ToLower(pluginName)
}

// Register adds d under its name and aliases.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{d.Name()}, d.Aliases()...)
	for _, name := range names {
		if _, exists := r.drivers[registryKey(d.Type(), name)]; exists {
			return errors.Newf(errors.ErrorTypeConfig, "driver %s already registered", PluginID(d.Type(), name))
		}
	}
	for _, name := range names {
		r.drivers[registryKey(d.Type(), name)] = d
	}

	r.log().Debug("driver registered",
		zap.String("type", d.Type()),
		zap.String("name", d.Name()),
		zap.Strings("aliases", d.Aliases()))
	return nil
}

// Resolve returns the driver registered for pluginType and pluginName.
func (r *Registry) Resolve(pluginType, pluginName string) (Driver, error) {
	r.mu.RLock()
	d, exists := r.drivers[registryKey(pluginType, pluginName)]
	r.mu.RUnlock()

	if !exists {
		id := PluginID(orDefault(pluginType), pluginName)
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unable to find plugin %s; make sure the driver is registered", id).
			WithDetail("plugin_id", id)
	}
	return d, nil
}

// List returns each registered driver once, ordered by type and name.
func (r *Registry) List() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		key := registryKey(d.Type(), d.Name())
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return registryKey(out[i].Type(), out[i].Name()) < registryKey(out[j].Type(), out[j].Name())
	})
	return out
}

// ValidatePipeline fails with a configuration error when a driver named by
// the job is not registered. It performs no I/O.
func (r *Registry) ValidatePipeline(job *config.JobConfig) error {
	src := job.Source
	if _, err := r.Resolve(src.JDBCPluginType, src.JDBCPluginName); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "source driver is not available")
	}
	if cat := job.Sink.Catalog; cat.Enabled() {
		if _, err := r.Resolve(cat.JDBCPluginType, cat.JDBCPluginName); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "partition catalog driver is not available")
		}
	}
	return nil
}

func orDefault(pluginType string) string {
	if pluginType == "" {
		return DefaultPluginType
	}
	return pluginType
}

// Global registry functions

// Register adds a driver to the global registry
func Register(d Driver) error {
	return globalRegistry.Register(d)
}

// MustRegister adds a driver to the global registry and panics on duplicates.
// It is meant for init functions.
func MustRegister(d Driver) {
	if err := globalRegistry.Register(d); err != nil {
		panic(err)
	}
}

// Resolve looks up a driver in the global registry
func Resolve(pluginType, pluginName string) (Driver, error) {
	return globalRegistry.Resolve(pluginType, pluginName)
}

// List returns the drivers in the global registry
func List() []Driver {
	return globalRegistry.List()
}

// ValidatePipeline validates a job against the global registry
func ValidatePipeline(job *config.JobConfig) error {
	return globalRegistry.ValidatePipeline(job)
}
