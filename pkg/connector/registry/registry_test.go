package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

type stubSource struct{ name string }

func (s *stubSource) Validate() error                                  { return nil }
func (s *stubSource) Prepare(context.Context, time.Time) error         { return nil }
func (s *stubSource) Discover(context.Context) (*core.Schema, error)   { return &core.Schema{Name: s.name}, nil }
func (s *stubSource) Read(context.Context) (*core.RecordStream, error) { return nil, nil }
func (s *stubSource) Close(context.Context) error                      { return nil }
func (s *stubSource) Metrics() map[string]interface{}                  { return nil }

func TestSourceFactories(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("database", func(cfg *config.DBSourceConfig) (core.Source, error) {
		return &stubSource{name: cfg.Name}, nil
	}))
	require.NoError(t, r.RegisterSource("broken", func(*config.DBSourceConfig) (core.Source, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "bad settings")
	}))

	err := r.RegisterSource("database", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	src, err := r.CreateSource("database", config.NewDBSourceConfig("orders"))
	require.NoError(t, err)
	schema, err := src.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "orders", schema.Name)

	_, err = r.CreateSource("broken", config.NewDBSourceConfig("orders"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = r.CreateSource("kafka", config.NewDBSourceConfig("orders"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDestinationNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateDestination("tpfs", config.NewTPFSSinkConfig("orders"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConnectorCatalog(t *testing.T) {
	c := NewConnectorCatalog()
	require.NoError(t, c.Register(&ConnectorInfo{Name: "tpfs", Type: core.ConnectorTypeDestination}))
	require.NoError(t, c.Register(&ConnectorInfo{Name: "database", Type: core.ConnectorTypeSource}))
	assert.Error(t, c.Register(&ConnectorInfo{Name: "tpfs"}))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "database", list[0].Name)
	assert.Equal(t, core.ConnectorTypeSource, list[0].Type)
	assert.Equal(t, "tpfs", list[1].Name)
}
