// Package connector groups the hydrator plugins.
//
// Sources implement core.Source and sinks implement core.Destination. Each
// plugin registers a factory and a ConnectorInfo from init:
//
//	func init() {
//		_ = registry.RegisterSource("database", NewDatabaseSource)
//	}
//
// The runner drives every plugin through the same lifecycle:
//
//	Validate -> Prepare(ctx, logicalTime) -> Discover/CreateSchema -> Read/Write -> Close
//
// Validate performs no I/O. Prepare does all planning and claiming, so a run
// that fails there has read and written nothing.
package connector
