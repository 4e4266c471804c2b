package tpfs

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ThalesGroup/hydrator-plugins/pkg/compression"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

func parquetCodec(alg compression.Algorithm) (compress.Compression, error) {
	switch alg {
	case compression.None, "":
		return compress.Codecs.Uncompressed, nil
	case compression.Snappy:
		return compress.Codecs.Snappy, nil
	case compression.Gzip:
		return compress.Codecs.Gzip, nil
	case compression.Zstd:
		return compress.Codecs.Zstd, nil
	case compression.LZ4:
		return compress.Codecs.Lz4Raw, nil
	}
	return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig,
		"parquet supports none, snappy, gzip, zstd or lz4 compression, not %s", alg)
}

// arrowType maps a field type onto the column type written to parquet.
// Decimals and dates keep their text form, as in the avro output.
func arrowType(t core.FieldType) arrow.DataType {
	switch t {
	case core.FieldTypeInt:
		return arrow.PrimitiveTypes.Int64
	case core.FieldTypeFloat:
		return arrow.PrimitiveTypes.Float64
	case core.FieldTypeBool:
		return arrow.FixedWidthTypes.Boolean
	case core.FieldTypeBinary:
		return arrow.BinaryTypes.Binary
	case core.FieldTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	}
	return arrow.BinaryTypes.String
}

func arrowSchema(schema *core.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// closeShield hides Close from the parquet writer, which otherwise closes
// its sink. The sink owns the part file and commits it separately.
type closeShield struct {
	io.Writer
}

type parquetEncoder struct {
	fw        *pqarrow.FileWriter
	builder   *array.RecordBuilder
	fields    []core.Field
	pending   int
	batchSize int
}

func newParquetEncoder(w io.Writer, schema *core.Schema, alg compression.Algorithm, batchSize int) (*parquetEncoder, error) {
	if schema == nil || len(schema.Fields) == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "parquet output requires a schema")
	}
	codec, err := parquetCodec(alg)
	if err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	as := arrowSchema(schema)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(as, closeShield{w}, props, pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to create parquet writer")
	}

	if batchSize <= 0 {
		batchSize = 1000
	}
	return &parquetEncoder{
		fw:        fw,
		builder:   array.NewRecordBuilder(mem, as),
		fields:    schema.Fields,
		batchSize: batchSize,
	}, nil
}

func (e *parquetEncoder) Encode(r *pool.Record) error {
	for i, f := range e.fields {
		v, err := nativeValue(f.Type, r.Data[f.Name])
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot encode field").WithDetail("field", f.Name)
		}
		appendValue(e.builder.Field(i), v)
	}
	e.pending++
	if e.pending >= e.batchSize {
		return e.flush()
	}
	return nil
}

// appendValue appends v, already converted by nativeValue, to b.
func appendValue(b array.Builder, v interface{}) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch col := b.(type) {
	case *array.Int64Builder:
		col.Append(v.(int64))
	case *array.Float64Builder:
		col.Append(v.(float64))
	case *array.BooleanBuilder:
		col.Append(v.(bool))
	case *array.BinaryBuilder:
		col.Append(v.([]byte))
	case *array.TimestampBuilder:
		col.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	case *array.StringBuilder:
		col.Append(v.(string))
	default:
		b.AppendNull()
	}
}

// flush writes the pending rows as one row group.
func (e *parquetEncoder) flush() error {
	if e.pending == 0 {
		return nil
	}
	rec := e.builder.NewRecord()
	defer rec.Release()
	e.pending = 0
	return e.fw.Write(rec)
}

func (e *parquetEncoder) Close() error {
	defer e.builder.Release()
	if err := e.flush(); err != nil {
		return err
	}
	return e.fw.Close()
}
