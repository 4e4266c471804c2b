// Package hydrator loads relational data into time-partitioned filesets.
//
// A run reads one import query from a database in parallel, non-overlapping
// splits and writes every row into a single partition whose path is derived
// from the run's logical start time. Partitions are claimed exactly once; a
// second run for the same logical time fails with a conflict instead of
// overwriting data.
//
// # Architecture
//
//   - pkg/split plans the split queries from a bounding query result
//   - pkg/partition derives partition keys and registers them in a key store
//   - pkg/driver resolves database drivers by plugin identifier and checks
//     connectivity and table existence
//   - pkg/fieldcase applies the configured column name case
//   - pkg/connector/sources/database and pkg/connector/destinations/tpfs are
//     the source and sink plugins
//   - internal/pipeline runs a job from source to sink
//   - cmd/hydrator is the command line entry point
//
// # Quick Start
//
//	name: orders
//	source:
//	  jdbcPluginName: postgres
//	  connectionString: postgres://${DB_USER}:${DB_PASSWORD}@db:5432/sales
//	  importQuery: SELECT * FROM orders WHERE $CONDITIONS
//	  boundingQuery: SELECT MIN(id), MAX(id) FROM orders
//	  splitBy: id
//	  numSplits: 8
//	sink:
//	  filePathFormat: yyyy-MM-dd/HH
//	  bucketURL: s3://warehouse?region=eu-west-1
//	  compression: zstd
//
//	hydrator run -c orders.yaml --logical-time 2024-03-01T10:00:00Z
//
// writes s3://warehouse/orders/2024-03-01/10/part-00000.jsonl.zst followed by
// a _SUCCESS marker.
package hydrator
