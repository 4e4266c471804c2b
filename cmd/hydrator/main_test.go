package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/json"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/testutil"
)

const jobYAML = `name: orders
logicalStartTime: "2024-03-01T10:15:00Z"
logging:
  level: error
source:
  jdbcPluginName: postgres
  connectionString: postgres://localhost:5432/shop
  importQuery: SELECT * FROM orders WHERE $CONDITIONS
  boundingQuery: SELECT MIN(id), MAX(id) FROM orders
  splitBy: id
  numSplits: 4
sink:
  filePathFormat: yyyy-MM-dd/HH
  bucketURL: mem://
`

func writeJob(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Hydrator v"+version)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "database (source)")
	assert.Contains(t, out, "tpfs (destination)")
	assert.Contains(t, out, "source.jdbc.postgres")
	assert.Contains(t, out, "source.jdbc.sqlite")
}

func TestValidate(t *testing.T) {
	path := writeJob(t, jobYAML)
	out, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, `job "orders" is valid`)
}

func TestValidateUnknownDriver(t *testing.T) {
	job := bytes.Replace([]byte(jobYAML), []byte("jdbcPluginName: postgres"), []byte("jdbcPluginName: informix"), 1)
	path := writeJob(t, string(job))

	_, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.jdbc.informix")
}

func TestPartition(t *testing.T) {
	path := writeJob(t, jobYAML)
	out, err := execute(t, "partition", "-c", path)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "orders/2024-03-01/10", got["path"])
	assert.Equal(t, "2024-03-01/10", got["relative"])

	out, err = execute(t, "partition", "-c", path, "--logical-time", "2024-12-31T23:00:00Z")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "orders/2024-12-31/23", got["path"])
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "partition")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job file is required")
}

func TestLogLevel(t *testing.T) {
	restore := logger.Replace(logger.Get())
	defer restore()
	path := writeJob(t, jobYAML)

	_, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.False(t, logger.Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Get().Core().Enabled(zapcore.ErrorLevel))

	_, err = execute(t, "validate", "-c", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Get().Core().Enabled(zapcore.DebugLevel))

	t.Setenv("HYDRATOR_LOG_LEVEL", "warn")
	_, err = execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.False(t, logger.Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Get().Core().Enabled(zapcore.WarnLevel))

	_, err = execute(t, "validate", "-c", path, "--log-level", "bogus")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func sqliteJob(t *testing.T, name, observability string) string {
	t.Helper()
	_, bucketURL := testutil.FileBucket(t)
	return writeJob(t, fmt.Sprintf(`name: %s
logicalStartTime: "2024-03-01T10:15:00Z"
logging:
  level: error
source:
  jdbcPluginName: sqlite
  connectionString: %q
  tableName: orders
  importQuery: SELECT id, total FROM orders WHERE $CONDITIONS
  boundingQuery: SELECT MIN(id), MAX(id) FROM orders
  splitBy: id
  numSplits: 2
sink:
  filePathFormat: yyyy-MM-dd
  bucketURL: %q
%s`, name, testutil.OrdersDB(t, 4), bucketURL, observability))
}

func TestRunTracingFromJob(t *testing.T) {
	restore := logger.Replace(logger.Get())
	defer restore()

	out, err := execute(t, "run", "-c", sqliteJob(t, "orders-untraced", ""))
	require.NoError(t, err)
	assert.Contains(t, out, `"RecordsWritten": 4`)
	assert.NotContains(t, out, "sink.write")

	out, err = execute(t, "run", "-c", sqliteJob(t, "orders-traced", `  observability:
    enable_tracing: true
`))
	require.NoError(t, err)
	assert.Contains(t, out, "hydrator.run")
	assert.Contains(t, out, "sink.write")
}
