// Package driver resolves database drivers by plugin identifier and checks
// connectivity and table existence through them.
//
// Driver packages register themselves from init, so a binary only needs a
// blank import to make a driver resolvable:
//
//	import _ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/postgres"
package driver

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/split"
)

// DefaultPluginType is the plugin type used when a configuration omits one.
const DefaultPluginType = "jdbc"

// Connection carries the settings needed to open a database.
type Connection struct {
	ConnectionString string
	User             string
	Password         string
	// Timeout bounds connection establishment; zero uses the driver default
	Timeout time.Duration
	// MaxOpenConns caps the pool; zero means unlimited
	MaxOpenConns int
}

// Driver is a database driver plugin.
type Driver interface {
	// Type is the plugin type, e.g. "jdbc"
	Type() string
	// Name is the plugin name, e.g. "postgres"
	Name() string
	// Aliases are alternate plugin names
	Aliases() []string
	// Open returns a connection pool. It does not contact the server.
	Open(conn Connection) (*sql.DB, error)
	Dialect() Dialect
}

// PluginID returns the identifier of a source plugin backed by the named driver.
func PluginID(pluginType, pluginName string) string {
	return fmt.Sprintf("source.%s.%s", pluginType, pluginName)
}

// PlaceholderStyle is how a dialect writes bind parameters.
type PlaceholderStyle int

const (
	// QuestionMark writes ?
	QuestionMark PlaceholderStyle = iota
	// Dollar writes $1, $2, ...
	Dollar
	// AtP writes @p1, @p2, ...
	AtP
	// Colon writes :1, :2, ...
	Colon
)

// Dialect holds the SQL differences the plugins depend on.
type Dialect interface {
	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder(n int) string
	// TimestampLiteral renders t as a literal comparable with timestamp columns
	TimestampLiteral(t time.Time) string
	// TableExistsQuery returns a query yielding one row with a count > 0 when the table exists
	TableExistsQuery(schema, table string) (string, []interface{})
}

// InformationSchema is a Dialect for databases exposing information_schema.tables.
type InformationSchema struct {
	Style PlaceholderStyle
	// CurrentSchema is the SQL expression for the session schema
	CurrentSchema string
	// TimeLiteral overrides the ANSI timestamp literal
	TimeLiteral func(time.Time) string
}

// Placeholder implements Dialect.
func (d InformationSchema) Placeholder(n int) string {
	return d.Style.Placeholder(n)
}

// Placeholder renders the n-th (1-based) parameter in this style.
func (s PlaceholderStyle) Placeholder(n int) string {
	switch s {
	case Dollar:
		return fmt.Sprintf("$%d", n)
	case AtP:
		return fmt.Sprintf("@p%d", n)
	case Colon:
		return fmt.Sprintf(":%d", n)
	}
	return "?"
}

// TimestampLiteral implements Dialect.
func (d InformationSchema) TimestampLiteral(t time.Time) string {
	if d.TimeLiteral != nil {
		return d.TimeLiteral(t)
	}
	return split.ANSITimestamp(t)
}

// TableExistsQuery implements Dialect.
func (d InformationSchema) TableExistsQuery(schema, table string) (string, []interface{}) {
	q := "SELECT COUNT(*) FROM information_schema.tables WHERE LOWER(table_name) = LOWER(" + d.Placeholder(1) + ")"
	if schema != "" {
		return q + " AND LOWER(table_schema) = LOWER(" + d.Placeholder(2) + ")", []interface{}{table, schema}
	}
	if d.CurrentSchema != "" {
		return q + " AND table_schema = " + d.CurrentSchema, []interface{}{table}
	}
	return q, []interface{}{table}
}

// SplitTableName separates an optional schema qualifier and strips identifier quotes.
func SplitTableName(name string) (schema, table string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		schema, table = name[:i], name[i+1:]
	} else {
		table = name
	}
	return unquote(schema), unquote(table)
}

func unquote(ident string) string {
	if len(ident) >= 2 {
		switch {
		case ident[0] == '"' && ident[len(ident)-1] == '"',
			ident[0] == '`' && ident[len(ident)-1] == '`',
			ident[0] == '[' && ident[len(ident)-1] == ']':
			return ident[1 : len(ident)-1]
		}
	}
	return ident
}
