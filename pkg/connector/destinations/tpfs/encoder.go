package tpfs

import (
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"

	"github.com/ThalesGroup/hydrator-plugins/pkg/compression"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/json"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

// Output formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatAvro    = "avro"
	FormatParquet = "parquet"
)

var formatExtensions = map[string]string{
	FormatJSONL:   ".jsonl",
	FormatCSV:     ".csv",
	FormatAvro:    ".avro",
	FormatParquet: ".parquet",
}

// parseFormat validates a format name and, for avro and parquet, that the
// compression maps onto one of the format's own codecs.
func parseFormat(format string, alg compression.Algorithm) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = FormatJSONL
	}
	if _, ok := formatExtensions[f]; !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", format).
			WithDetail("allowed", []string{FormatJSONL, FormatCSV, FormatAvro, FormatParquet})
	}
	switch f {
	case FormatAvro:
		if _, err := avroCodec(alg); err != nil {
			return "", err
		}
	case FormatParquet:
		if _, err := parquetCodec(alg); err != nil {
			return "", err
		}
	}
	return f, nil
}

// compressesInternally reports whether the format applies compression itself
// instead of through a stream compressor.
func compressesInternally(format string) bool {
	return format == FormatAvro || format == FormatParquet
}

// fileName returns the part file name. Formats that compress internally
// carry no compression suffix.
func fileName(format string, alg compression.Algorithm) string {
	name := "part-00000" + formatExtensions[format]
	if !compressesInternally(format) {
		name += alg.Extension()
	}
	return name
}

type recordEncoder interface {
	Encode(r *pool.Record) error
	// Close flushes buffered output. It does not close the underlying writer.
	Close() error
}

func newEncoder(format string, w io.Writer, schema *core.Schema, alg compression.Algorithm, batchSize int) (recordEncoder, error) {
	switch format {
	case FormatJSONL:
		return &jsonlEncoder{lw: json.NewLineWriter(w)}, nil
	case FormatCSV:
		return &csvEncoder{w: csv.NewWriter(w), schema: schema}, nil
	case FormatAvro:
		return newAvroEncoder(w, schema, alg, batchSize)
	case FormatParquet:
		return newParquetEncoder(w, schema, alg, batchSize)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", format)
}

type jsonlEncoder struct {
	lw *json.LineWriter
}

func (e *jsonlEncoder) Encode(r *pool.Record) error {
	return e.lw.WriteRecord(r)
}

func (e *jsonlEncoder) Close() error { return nil }

type csvEncoder struct {
	w       *csv.Writer
	schema  *core.Schema
	columns []string
	row     []string
}

func (e *csvEncoder) Encode(r *pool.Record) error {
	if e.columns == nil {
		if e.schema != nil && len(e.schema.Fields) > 0 {
			e.columns = e.schema.FieldNames()
		} else {
			for k := range r.Data {
				e.columns = append(e.columns, k)
			}
			sort.Strings(e.columns)
		}
		e.row = make([]string, len(e.columns))
		if err := e.w.Write(e.columns); err != nil {
			return err
		}
	}
	for i, c := range e.columns {
		e.row[i] = csvValue(r.Data[c])
	}
	return e.w.Write(e.row)
}

func (e *csvEncoder) Close() error {
	e.w.Flush()
	return e.w.Error()
}

func csvValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func avroCodec(alg compression.Algorithm) (string, error) {
	switch alg {
	case compression.None, "":
		return goavro.CompressionNullLabel, nil
	case compression.Deflate:
		return goavro.CompressionDeflateLabel, nil
	case compression.Snappy:
		return goavro.CompressionSnappyLabel, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "avro supports none, deflate or snappy compression, not %s", alg)
}

var avroNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_]`)

func avroName(name string) string {
	n := avroNameInvalid.ReplaceAllString(name, "_")
	if n == "" || (n[0] >= '0' && n[0] <= '9') {
		n = "_" + n
	}
	return n
}

// avroBranch is the avro type, and union branch name, used for a field type.
func avroBranch(t core.FieldType) (interface{}, string) {
	switch t {
	case core.FieldTypeInt:
		return "long", "long"
	case core.FieldTypeFloat:
		return "double", "double"
	case core.FieldTypeBool:
		return "boolean", "boolean"
	case core.FieldTypeBinary:
		return "bytes", "bytes"
	case core.FieldTypeTimestamp:
		return map[string]interface{}{"type": "long", "logicalType": "timestamp-micros"}, "long.timestamp-micros"
	}
	return "string", "string"
}

// avroSchema builds a record schema whose fields are all nullable unions.
func avroSchema(schema *core.Schema) (string, []string, error) {
	fields := make([]map[string]interface{}, 0, len(schema.Fields))
	branches := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		typ, branch := avroBranch(f.Type)
		fields = append(fields, map[string]interface{}{
			"name":    avroName(f.Name),
			"type":    []interface{}{"null", typ},
			"default": nil,
		})
		branches = append(branches, branch)
	}
	b, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   avroName(schema.Name),
		"fields": fields,
	})
	if err != nil {
		return "", nil, err
	}
	return string(b), branches, nil
}

type avroEncoder struct {
	ocf       *goavro.OCFWriter
	fields    []core.Field
	names     []string
	branches  []string
	batch     []interface{}
	batchSize int
}

func newAvroEncoder(w io.Writer, schema *core.Schema, alg compression.Algorithm, batchSize int) (*avroEncoder, error) {
	if schema == nil || len(schema.Fields) == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "avro output requires a schema")
	}
	codec, err := avroCodec(alg)
	if err != nil {
		return nil, err
	}
	text, branches, err := avroSchema(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to build avro schema")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: w, Schema: text, CompressionName: codec})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "invalid avro schema")
	}

	names := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		names[i] = avroName(f.Name)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &avroEncoder{
		ocf:       ocf,
		fields:    schema.Fields,
		names:     names,
		branches:  branches,
		batch:     make([]interface{}, 0, batchSize),
		batchSize: batchSize,
	}, nil
}

func (e *avroEncoder) Encode(r *pool.Record) error {
	datum := make(map[string]interface{}, len(e.fields))
	for i, f := range e.fields {
		v, err := nativeValue(f.Type, r.Data[f.Name])
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot encode field").WithDetail("field", f.Name)
		}
		if v == nil {
			datum[e.names[i]] = nil
			continue
		}
		datum[e.names[i]] = goavro.Union(e.branches[i], v)
	}
	e.batch = append(e.batch, datum)
	if len(e.batch) >= e.batchSize {
		return e.flush()
	}
	return nil
}

func (e *avroEncoder) flush() error {
	if len(e.batch) == 0 {
		return nil
	}
	err := e.ocf.Append(e.batch)
	e.batch = e.batch[:0]
	return err
}

func (e *avroEncoder) Close() error {
	return e.flush()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// nativeValue converts a scanned column value to the Go type the binary
// encoders expect for t: int64, float64, bool, []byte, time.Time or string.
func nativeValue(t core.FieldType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case core.FieldTypeInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint8:
			return int64(x), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case core.FieldTypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(x, 64)
		}
	case core.FieldTypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	case core.FieldTypeBinary:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	case core.FieldTypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range timeLayouts {
				if ts, err := time.Parse(layout, x); err == nil {
					return ts, nil
				}
			}
			return nil, fmt.Errorf("unparseable timestamp %q", x)
		}
	case core.FieldTypeDecimal:
		switch x := v.(type) {
		case string:
			return x, nil
		case decimal.Decimal:
			return x.String(), nil
		case float64:
			return decimal.NewFromFloat(x).String(), nil
		case int64:
			return decimal.NewFromInt(x).String(), nil
		}
	default:
		return csvValue(v), nil
	}
	return nil, fmt.Errorf("unexpected %T for %s field", v, t)
}
