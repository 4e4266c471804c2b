// Package sqlite registers the embedded SQLite driver.
package sqlite

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
)

func init() {
	driver.MustRegister(Driver{})
}

// Driver is the SQLite driver plugin. The connection string is a file name,
// a file: URI or :memory:.
type Driver struct{}

func (Driver) Type() string      { return driver.DefaultPluginType }
func (Driver) Name() string      { return "sqlite" }
func (Driver) Aliases() []string { return []string{"sqlite3"} }

func (Driver) Open(conn driver.Connection) (*sql.DB, error) {
	return sql.Open("sqlite", conn.ConnectionString)
}

func (Driver) Dialect() driver.Dialect { return Dialect{} }

// Dialect reads the sqlite_master catalog and writes times the way the driver stores them.
type Dialect struct{}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) TimestampLiteral(t time.Time) string {
	return "'" + t.Format("2006-01-02 15:04:05.999999999-07:00") + "'"
}

func (Dialect) TableExistsQuery(_, table string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", []interface{}{table}
}
