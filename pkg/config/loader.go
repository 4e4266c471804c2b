package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// JobConfig describes one run: a source, a sink and the logical start time.
type JobConfig struct {
	Name string `yaml:"name" json:"name"`
	// LogicalStartTime is an RFC 3339 timestamp; empty means the time the run starts
	LogicalStartTime string        `yaml:"logicalStartTime" json:"logicalStartTime"`
	Logging          logger.Config `yaml:"logging" json:"logging"`

	Source DBSourceConfig `yaml:"source" json:"source"`
	Sink   TPFSSinkConfig `yaml:"sink" json:"sink"`
}

// NewJobConfig returns a job with source and sink defaults applied.
func NewJobConfig(name string) *JobConfig {
	job := &JobConfig{
		Name:    name,
		Logging: logger.Config{Level: "info", Encoding: "json"},
		Source:  *NewDBSourceConfig(""),
		Sink:    *NewTPFSSinkConfig(name),
	}
	job.applyNames()
	return job
}

func (j *JobConfig) applyNames() {
	if j.Source.Name == "" && j.Name != "" {
		j.Source.Name = j.Name + "-source"
	}
	if j.Sink.Name == "" {
		j.Sink.Name = j.Name
	}
}

// LogicalTime resolves the logical start time of the run.
func (j *JobConfig) LogicalTime(now time.Time) (time.Time, error) {
	if j.LogicalStartTime == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, j.LogicalStartTime)
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrorTypeConfig, "logicalStartTime must be RFC 3339")
	}
	return t, nil
}

// MetricsEnabled reports whether either plugin publishes Prometheus metrics.
func (j *JobConfig) MetricsEnabled() bool {
	return j.Source.Observability.EnableMetrics || j.Sink.Observability.EnableMetrics
}

// TracingEnabled reports whether either plugin asks for span export.
func (j *JobConfig) TracingEnabled() bool {
	return j.Source.Observability.EnableTracing || j.Sink.Observability.EnableTracing
}

// Validate validates both plugins of the job.
func (j *JobConfig) Validate() error {
	if j.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "job name is required")
	}
	if _, err := j.LogicalTime(time.Now()); err != nil {
		return err
	}
	if err := j.Source.Validate(); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "source")
	}
	if err := j.Sink.Validate(); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "sink")
	}
	return nil
}

// LoadJob reads a job file on top of the defaults from NewJobConfig.
func LoadJob(filePath string) (*JobConfig, error) {
	job := NewJobConfig("")
	if err := Load(filePath, job); err != nil {
		return nil, err
	}
	job.applyNames()
	return job, nil
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// References with arguments are not variable names and stay untouched.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(ref string) string {
		name := envVarPattern.FindStringSubmatch(ref)[1]
		return os.Getenv(name)
	})
}
