// Package snowflake registers the Snowflake driver.
package snowflake

import (
	"database/sql"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
)

func init() {
	driver.MustRegister(Driver{})
}

// Driver is the Snowflake driver plugin.
type Driver struct{}

func (Driver) Type() string      { return driver.DefaultPluginType }
func (Driver) Name() string      { return "snowflake" }
func (Driver) Aliases() []string { return nil }

// Open parses a gosnowflake DSN such as user:pass@account/db/schema?warehouse=wh.
func (Driver) Open(conn driver.Connection) (*sql.DB, error) {
	cfg, err := gosnowflake.ParseDSN(conn.ConnectionString)
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
		cfg.LoginTimeout = conn.Timeout
	}
	return sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *cfg)), nil
}

func (Driver) Dialect() driver.Dialect {
	return driver.InformationSchema{Style: driver.QuestionMark, CurrentSchema: "CURRENT_SCHEMA()"}
}
