// Package core defines the contracts between the pipeline runner and the
// source and sink plugins.
package core

import (
	"context"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/models"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Schema, Field and FieldType are re-exported for plugin implementations.
type (
	Schema    = models.Schema
	Field     = models.Field
	FieldType = models.FieldType
)

const (
	FieldTypeString    = models.FieldTypeString
	FieldTypeInt       = models.FieldTypeInt
	FieldTypeFloat     = models.FieldTypeFloat
	FieldTypeBool      = models.FieldTypeBool
	FieldTypeDecimal   = models.FieldTypeDecimal
	FieldTypeTimestamp = models.FieldTypeTimestamp
	FieldTypeDate      = models.FieldTypeDate
	FieldTypeBinary    = models.FieldTypeBinary
)

// RecordStream represents a stream of records. Records is closed when the
// source is done; Errors carries at most one terminal error.
type RecordStream struct {
	Records <-chan *pool.Record
	Errors  <-chan error
}

// Source is the interface that all source plugins must implement.
type Source interface {
	// Validate checks the configuration without performing I/O
	Validate() error
	// Prepare connects, checks preconditions and plans the read
	Prepare(ctx context.Context, logicalTime time.Time) error
	Discover(ctx context.Context) (*Schema, error)
	Read(ctx context.Context) (*RecordStream, error)
	Close(ctx context.Context) error

	Metrics() map[string]interface{}
}

// Destination is the interface that all sink plugins must implement.
type Destination interface {
	// Validate checks the configuration without performing I/O
	Validate() error
	// Prepare claims the output location for the run
	Prepare(ctx context.Context, logicalTime time.Time) error
	CreateSchema(ctx context.Context, schema *Schema) error
	Write(ctx context.Context, stream *RecordStream) error
	Close(ctx context.Context) error

	Metrics() map[string]interface{}
}
