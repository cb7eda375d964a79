package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

const DEFAULT_PARQUET_COMPRESSION = "zstd"

// WriteParquet encodes rows as one parquet file. Row order is preserved, so
// the same rows always produce the same bytes.
func WriteParquet[T any](rows []T, compression string) ([]byte, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}

	writerOptions := []parquet.WriterOption{
		codec,
		parquet.DataPageStatistics(true),
		parquet.PageBufferSize(8 * 1024 * 1024), // 8MB pages
		parquet.SortingWriterConfig(
			parquet.SortingColumns(
				parquet.Ascending("slot"),
			),
		),
		parquet.ColumnIndexSizeLimit(16 * 1024), // 16KB limit for column index
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[T](&buf, writerOptions...)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadParquet decodes every row of a parquet file produced by WriteParquet.
func ReadParquet[T any](data []byte) ([]T, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	total := reader.NumRows()
	rows := make([]T, total)
	read := 0
	for int64(read) < total {
		n, err := reader.Read(rows[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if int64(read) != total {
		return nil, fmt.Errorf("parquet file declares %d rows, read %d", total, read)
	}
	return rows, nil
}

func compressionCodec(name string) (parquet.WriterOption, error) {
	switch name {
	case "zstd", "":
		return parquet.Compression(&parquet.Zstd), nil
	case "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none":
		return parquet.Compression(&parquet.Uncompressed), nil
	}
	return nil, fmt.Errorf("unsupported parquet compression: %s", name)
}
