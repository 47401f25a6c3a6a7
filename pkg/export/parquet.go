package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/procmap/pkg/pipeline"
)

// Compression names a Parquet codec.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
)

// ParquetExporter writes the DFG edge table and the sorted event log as
// Parquet files through Apache Arrow.
type ParquetExporter struct {
	dir         string
	compression Compression
	allocator   memory.Allocator
}

// NewParquetExporter creates an exporter writing dir/dfg.parquet and
// dir/events.parquet.
func NewParquetExporter(dir string, compression Compression) *ParquetExporter {
	return &ParquetExporter{
		dir:         dir,
		compression: compression,
		allocator:   memory.NewGoAllocator(),
	}
}

func (e *ParquetExporter) Name() string    { return "parquet" }
func (e *ParquetExporter) Dir() string     { return e.dir }
func (e *ParquetExporter) Files() []string { return []string{"dfg.parquet", "events.parquet"} }

func edgeSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "source", Type: arrow.BinaryTypes.String},
		{Name: "target", Type: arrow.BinaryTypes.String},
		{Name: "frequency", Type: arrow.PrimitiveTypes.Int64},
		{Name: "mean_hours", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

func eventSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "case_id", Type: arrow.BinaryTypes.String},
		{Name: "activity", Type: arrow.BinaryTypes.String},
		{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_ms},
	}, nil)
}

// Export implements pipeline.Exporter.
func (e *ParquetExporter) Export(ctx context.Context, res *pipeline.Result) error {
	if err := e.write(filepath.Join(e.dir, "dfg.parquet"), e.edgeRecord(res)); err != nil {
		return err
	}
	return e.write(filepath.Join(e.dir, "events.parquet"), e.eventRecord(res))
}

func (e *ParquetExporter) edgeRecord(res *pipeline.Result) arrow.Record {
	b := array.NewRecordBuilder(e.allocator, edgeSchema())
	defer b.Release()

	src := b.Field(0).(*array.StringBuilder)
	dst := b.Field(1).(*array.StringBuilder)
	freq := b.Field(2).(*array.Int64Builder)
	hours := b.Field(3).(*array.Float64Builder)

	for _, edge := range res.DFG.Edges {
		src.Append(edge.Source)
		dst.Append(edge.Target)
		freq.Append(int64(edge.Frequency))
		hours.Append(edge.MeanHours)
	}
	return b.NewRecord()
}

func (e *ParquetExporter) eventRecord(res *pipeline.Result) arrow.Record {
	b := array.NewRecordBuilder(e.allocator, eventSchema())
	defer b.Release()

	caseID := b.Field(0).(*array.StringBuilder)
	activity := b.Field(1).(*array.StringBuilder)
	ts := b.Field(2).(*array.TimestampBuilder)

	n := res.Log.Len()
	caseID.Reserve(n)
	activity.Reserve(n)
	ts.Reserve(n)
	for i := 0; i < n; i++ {
		ev := res.Log.At(i)
		caseID.Append(ev.CaseID)
		activity.Append(ev.Activity)
		ts.Append(arrow.Timestamp(ev.Timestamp.UnixMilli()))
	}
	return b.NewRecord()
}

func (e *ParquetExporter) write(path string, rec arrow.Record) error {
	defer rec.Release()

	return writeAtomic(path, func(w io.Writer) error {
		props := parquet.NewWriterProperties(
			parquet.WithCompression(e.codec()),
			parquet.WithDictionaryDefault(true),
		)
		arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

		// The Parquet writer closes sinks that implement io.Closer.
		fw, err := pqarrow.NewFileWriter(rec.Schema(), struct{ io.Writer }{w}, props, arrowProps)
		if err != nil {
			return fmt.Errorf("failed to create parquet writer: %w", err)
		}
		if err := fw.Write(rec); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		return fw.Close()
	})
}

func (e *ParquetExporter) codec() compress.Compression {
	switch e.compression {
	case CompressionNone:
		return compress.Codecs.Uncompressed
	case CompressionGzip:
		return compress.Codecs.Gzip
	case CompressionZstd:
		return compress.Codecs.Zstd
	default:
		return compress.Codecs.Snappy
	}
}
