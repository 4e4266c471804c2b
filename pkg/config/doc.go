// Package config provides configuration for the hydrator plugins and the jobs that run them.
//
// # Structure
//
// Every plugin configuration embeds BaseConfig inline, which carries the
// sections shared by all plugins:
//
//	type BaseConfig struct {
//		Name string `yaml:"name" json:"name"`
//		Type string `yaml:"type" json:"type"`
//
//		Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
//		Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
//		Observability ObservabilityConfig `yaml:"observability" json:"observability"`
//	}
//
// Plugin-specific properties keep the names used by pipeline definitions
// (importQuery, boundingQuery, splitBy, numSplits, basePath, filePathFormat,
// timeZone, partitionOffset, ...).
//
// # Loading
//
//	job, err := config.LoadJob("job.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := job.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
// References of the form ${VAR_NAME} are replaced with environment values
// before parsing. Macros that carry arguments, such as
// ${logicalStartTime(yyyy-MM-dd,1d)}, are left in place for the source to
// expand at run time.
//
//	source:
//	  connectionString: postgres://${DB_USER}:${DB_PASSWORD}@db:5432/sales
//	  importQuery: >
//	    SELECT * FROM orders
//	    WHERE created < '${logicalStartTime(yyyy-MM-dd)}' AND $CONDITIONS
package config
