// Package postgres registers the PostgreSQL driver, backed by pgx.
package postgres

import (
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
)

func init() {
	driver.MustRegister(Driver{})
}

// Driver is the PostgreSQL driver plugin.
type Driver struct{}

func (Driver) Type() string      { return driver.DefaultPluginType }
func (Driver) Name() string      { return "postgres" }
func (Driver) Aliases() []string { return []string{"postgresql", "pgx"} }

// Open parses a postgres:// URL or key=value connection string. User and
// password, when set, override the ones in the string.
func (Driver) Open(conn driver.Connection) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(conn.ConnectionString)
	if err != nil {
		return nil, err
	}
	if conn.User != "" {
		cfg.User = conn.User
	}
	if conn.Password != "" {
		cfg.Password = conn.Password
	}
	if conn.Timeout > 0 {
		cfg.ConnectTimeout = conn.Timeout
	}
	return stdlib.OpenDB(*cfg), nil
}

func (Driver) Dialect() driver.Dialect {
	return driver.InformationSchema{Style: driver.Dollar, CurrentSchema: "current_schema()"}
}
