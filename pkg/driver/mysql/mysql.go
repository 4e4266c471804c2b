// Package mysql registers the MySQL and MariaDB driver.
package mysql

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"

	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
)

func init() {
	driver.MustRegister(Driver{})
}

// Driver is the MySQL driver plugin.
type Driver struct{}

func (Driver) Type() string      { return driver.DefaultPluginType }
func (Driver) Name() string      { return "mysql" }
func (Driver) Aliases() []string { return []string{"mariadb"} }

// Open parses a go-sql-driver DSN such as user:pass@tcp(host:3306)/db.
func (Driver) Open(conn driver.Connection) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(conn.ConnectionString)
	if err != nil {
		return nil, err
	}
	if conn.User != "" {
		cfg.User = conn.User
	}
	if conn.Password != "" {
		cfg.Passwd = conn.Password
	}
	if conn.Timeout > 0 {
		cfg.Timeout = conn.Timeout
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (Driver) Dialect() driver.Dialect {
	return driver.InformationSchema{Style: driver.QuestionMark, CurrentSchema: "DATABASE()"}
}
