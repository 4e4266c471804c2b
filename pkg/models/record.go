// Package models holds the record and schema types shared by sources and sinks.
package models

import (
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

// Record is the pooled record type.
type Record = pool.Record

// RecordMetadata is the pooled record metadata type.
type RecordMetadata = pool.RecordMetadata

// FieldType is the logical type of a field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeDecimal   FieldType = "decimal"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeDate      FieldType = "date"
	FieldTypeBinary    FieldType = "binary"
)

// Schema describes the records a source produces.
type Schema struct {
	// Name identifies the schema, e.g. the source name
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is a single column of a schema.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
	// DatabaseType is the type name reported by the driver
	DatabaseType string `json:"database_type,omitempty"`
}

// FieldNames returns the field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
