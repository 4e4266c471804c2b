package config

import (
	"fmt"
	"strings"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/partition"
	"github.com/ThalesGroup/hydrator-plugins/pkg/split"
)

// Boundary policies for the first and last split of a plan.
const (
	BoundaryOpenEnds = "open_ends"
	BoundaryClosed   = "closed"
)

// DBSourceConfig configures the database batch source.
type DBSourceConfig struct {
	BaseConfig `yaml:",inline" json:",inline"`

	// Driver selection. The plugin id is source.<jdbcPluginType>.<jdbcPluginName>.
	JDBCPluginType string `yaml:"jdbcPluginType" json:"jdbcPluginType" default:"jdbc"`
	JDBCPluginName string `yaml:"jdbcPluginName" json:"jdbcPluginName" required:"true"`

	ConnectionString string `yaml:"connectionString" json:"connectionString" required:"true"`
	User             string `yaml:"user" json:"user"`
	Password         string `yaml:"password" json:"password"`

	// TableName, when set, is checked for existence before any query runs
	TableName string `yaml:"tableName" json:"tableName"`

	ImportQuery   string `yaml:"importQuery" json:"importQuery" required:"true"`
	BoundingQuery string `yaml:"boundingQuery" json:"boundingQuery"`
	SplitBy       string `yaml:"splitBy" json:"splitBy"`
	NumSplits     *int   `yaml:"numSplits" json:"numSplits"`

	ColumnNameCase   string `yaml:"columnNameCase" json:"columnNameCase"`
	EnableAutoCommit bool   `yaml:"enableAutoCommit" json:"enableAutoCommit"`
	BoundaryPolicy   string `yaml:"boundaryPolicy" json:"boundaryPolicy" default:"open_ends"`
	IncludeNullSplit bool   `yaml:"includeNullSplit" json:"includeNullSplit"`
}

// NewDBSourceConfig returns a source configuration with defaults applied.
func NewDBSourceConfig(name string) *DBSourceConfig {
	return &DBSourceConfig{
		BaseConfig:     *NewBaseConfig(name, "database"),
		JDBCPluginType: "jdbc",
		BoundaryPolicy: BoundaryOpenEnds,
	}
}

// PluginID returns the identifier the driver registry resolves.
func (c *DBSourceConfig) PluginID() string {
	return fmt.Sprintf("source.%s.%s", c.JDBCPluginType, c.JDBCPluginName)
}

// ImportSpec returns the split planning input described by the configuration.
func (c *DBSourceConfig) ImportSpec() split.ImportSpec {
	return split.ImportSpec{
		ImportQuery:   c.ImportQuery,
		BoundingQuery: c.BoundingQuery,
		SplitColumn:   c.SplitBy,
		SplitCount:    c.NumSplits,
	}
}

// SplitOptions maps the boundary settings onto planner options.
func (c *DBSourceConfig) SplitOptions() split.Options {
	opts := split.DefaultOptions()
	opts.OpenEnds = c.BoundaryPolicy != BoundaryClosed
	opts.NullSplit = c.IncludeNullSplit
	return opts
}

// Validate checks the source configuration without performing any I/O.
func (c *DBSourceConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.JDBCPluginName) == "" {
		return errors.New(errors.ErrorTypeConfig, "jdbcPluginName is required")
	}
	if strings.TrimSpace(c.ConnectionString) == "" {
		return errors.New(errors.ErrorTypeConfig, "connectionString is required")
	}
	switch c.BoundaryPolicy {
	case "", BoundaryOpenEnds, BoundaryClosed:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown boundaryPolicy %q", c.BoundaryPolicy)
	}
	return c.ImportSpec().Validate()
}

// CatalogConfig points the sink at a durable partition catalog table.
type CatalogConfig struct {
	JDBCPluginType   string `yaml:"jdbcPluginType" json:"jdbcPluginType"`
	JDBCPluginName   string `yaml:"jdbcPluginName" json:"jdbcPluginName"`
	ConnectionString string `yaml:"connectionString" json:"connectionString"`
	Table            string `yaml:"table" json:"table"`
}

// Enabled reports whether a catalog is configured.
func (c *CatalogConfig) Enabled() bool {
	return c != nil && c.JDBCPluginName != ""
}

// TPFSSinkConfig configures the time-partitioned fileset sink.
type TPFSSinkConfig struct {
	BaseConfig `yaml:",inline" json:",inline"`

	// BasePath defaults to the dataset name
	BasePath        string `yaml:"basePath" json:"basePath"`
	FilePathFormat  string `yaml:"filePathFormat" json:"filePathFormat"`
	TimeZone        string `yaml:"timeZone" json:"timeZone"`
	PartitionOffset string `yaml:"partitionOffset" json:"partitionOffset"`

	// BucketURL selects the storage engine, e.g. file:///data, s3://bucket, gs://bucket, mem://
	BucketURL   string `yaml:"bucketURL" json:"bucketURL"`
	Format      string `yaml:"format" json:"format" default:"jsonl"`
	Compression string `yaml:"compression" json:"compression" default:"none"`

	Catalog *CatalogConfig `yaml:"catalog,omitempty" json:"catalog,omitempty"`
}

// NewTPFSSinkConfig returns a sink configuration with defaults applied.
func NewTPFSSinkConfig(name string) *TPFSSinkConfig {
	return &TPFSSinkConfig{
		BaseConfig:  *NewBaseConfig(name, "tpfs"),
		Format:      "jsonl",
		Compression: "none",
	}
}

// PartitionSpec returns the partition derivation input described by the configuration.
func (c *TPFSSinkConfig) PartitionSpec() partition.Spec {
	base := c.BasePath
	if base == "" {
		base = c.Name
	}
	return partition.Spec{
		BasePath:   base,
		PathFormat: c.FilePathFormat,
		TimeZone:   c.TimeZone,
		Offset:     c.PartitionOffset,
	}
}

// Validate checks the sink configuration without performing any I/O.
func (c *TPFSSinkConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if c.Catalog != nil && c.Catalog.JDBCPluginName != "" && c.Catalog.ConnectionString == "" {
		return errors.New(errors.ErrorTypeConfig, "catalog.connectionString is required when a catalog driver is set")
	}
	return c.PartitionSpec().Validate()
}
