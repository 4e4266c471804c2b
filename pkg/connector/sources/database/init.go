package database

import (
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/registry"
)

// ConnectorName is the registered source type.
const ConnectorName = "database"

func init() {
	_ = registry.RegisterSource(ConnectorName, NewDatabaseSource)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        ConnectorName,
		Type:        core.ConnectorTypeSource,
		Description: "Batch source reading an import query in parallel splits through a registered database driver",
		Version:     "1.0.0",
		Capabilities: []string{
			"batch",
			"parallel_splits",
			"schema_discovery",
			"logical_time_macros",
		},
		ConfigSchema: map[string]interface{}{
			"jdbcPluginName": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Registered driver name, e.g. postgres, mysql, sqlserver",
			},
			"connectionString": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Driver connection string",
			},
			"importQuery": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "SELECT query; must contain $CONDITIONS unless numSplits is 1",
			},
			"boundingQuery": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Query returning the min and max of splitBy",
			},
			"splitBy": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Column used to divide the import query",
			},
			"numSplits": map[string]interface{}{
				"type":        "integer",
				"required":    false,
				"default":     2,
				"description": "Number of splits",
			},
			"columnNameCase": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "none, upper or lower",
			},
		},
	})
}
