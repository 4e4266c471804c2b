// Package sqlserver registers the Microsoft SQL Server driver.
package sqlserver

import (
	"database/sql"
	"net/url"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
)

func init() {
	driver.MustRegister(Driver{})
}

// Driver is the SQL Server driver plugin.
type Driver struct{}

func (Driver) Type() string      { return driver.DefaultPluginType }
func (Driver) Name() string      { return "sqlserver" }
func (Driver) Aliases() []string { return []string{"mssql"} }

// Open accepts sqlserver:// URLs and ADO-style strings. Credentials are
// merged into URLs only.
func (Driver) Open(conn driver.Connection) (*sql.DB, error) {
	dsn := conn.ConnectionString
	if strings.HasPrefix(dsn, "sqlserver://") && (conn.User != "" || conn.Password != "") {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, err
		}
		user := conn.User
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, conn.Password)
		dsn = u.String()
	}

	connector, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (Driver) Dialect() driver.Dialect {
	return driver.InformationSchema{
		Style:         driver.AtP,
		CurrentSchema: "SCHEMA_NAME()",
		TimeLiteral: func(t time.Time) string {
			return "CAST('" + t.Format("2006-01-02T15:04:05.0000000") + "' AS DATETIME2)"
		},
	}
}
