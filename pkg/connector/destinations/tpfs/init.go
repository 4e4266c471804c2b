package tpfs

import (
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/registry"
)

// ConnectorName is the registered sink type.
const ConnectorName = "tpfs"

func init() {
	_ = registry.RegisterDestination(ConnectorName, NewTPFSSink)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        ConnectorName,
		Type:        core.ConnectorTypeDestination,
		Description: "Time-partitioned fileset sink writing one partition per logical start time",
		Version:     "1.0.0",
		Capabilities: []string{
			"time_partitioning",
			"partition_catalog",
			"jsonl",
			"csv",
			"avro",
			"parquet",
			"compression",
		},
		ConfigSchema: map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Dataset name; also the default base path",
			},
			"filePathFormat": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Date pattern for the partition path, e.g. yyyy-MM-dd/HH-mm",
			},
			"timeZone": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Zone used with filePathFormat; unknown zones fall back to UTC",
			},
			"partitionOffset": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Amount subtracted from the logical start time, e.g. 1h or 2d",
			},
			"bucketURL": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "file://, s3://, gs:// or mem:// bucket",
			},
		},
	})
}
