// Package parquetx exports combined tables as Parquet for downstream
// analytics. Every column is an optional UTF-8 string so the file holds the
// same text as the CSV it came from.
package parquetx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"redditetl/internal/csvin"
	"redditetl/internal/iox"
	"redditetl/internal/logger"
	"redditetl/internal/schema"
)

// number of goroutines parquet-go uses to encode a row group
const parallel = 4

type column struct {
	Tag string `json:"Tag"`
}

type root struct {
	Tag    string   `json:"Tag"`
	Fields []column `json:"Fields"`
}

// SchemaJSON builds the parquet-go JSON schema for a header.
func SchemaJSON(header []string) (string, error) {
	if len(header) == 0 {
		return "", errors.New("parquetx: empty header")
	}
	r := root{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, name := range header {
		if name == "" || strings.ContainsAny(name, ",= ") {
			return "", fmt.Errorf("parquetx: column name %q cannot be used in a parquet schema", name)
		}
		r.Fields = append(r.Fields, column{
			Tag: "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
		})
	}
	b, err := sonic.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportCSV writes csvPath to parquetPath with Snappy compression. When kind
// is known the CSV header must be that kind's field list.
func ExportCSV(ctx context.Context, csvPath, parquetPath string, kind schema.Kind) (rows int64, err error) {
	log := logger.Named("parquet")

	in, err := iox.OpenAuto(csvPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	r := csvin.New(in, csvin.Options{})
	header, err := r.Header()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: empty file", csvPath)
		}
		return 0, fmt.Errorf("%s: header: %w", csvPath, err)
	}
	if kind != schema.Unknown && !schema.For(kind).Equal(header) {
		return 0, fmt.Errorf("%s: header does not match the %s schema", csvPath, kind)
	}
	sch, err := SchemaJSON(header)
	if err != nil {
		return 0, err
	}

	out, err := iox.CreateAtomic(parquetPath)
	if err != nil {
		return 0, err
	}
	defer out.Abort()

	pw, err := writer.NewJSONWriter(sch, writerfile.NewWriterFile(out), parallel)
	if err != nil {
		return 0, fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	row := make(map[string]string, len(header))
	for {
		if rows&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				_ = pw.WriteStop()
				return rows, err
			}
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = pw.WriteStop()
			return rows, fmt.Errorf("%s line %d: %w", csvPath, r.Line(), err)
		}
		for i, name := range header {
			row[name] = rec[i]
		}
		b, err := sonic.Marshal(row)
		if err != nil {
			_ = pw.WriteStop()
			return rows, err
		}
		if err := pw.Write(string(b)); err != nil {
			_ = pw.WriteStop()
			return rows, fmt.Errorf("parquet write: %w", err)
		}
		rows++
	}

	if err := pw.WriteStop(); err != nil {
		return rows, fmt.Errorf("parquet finish: %w", err)
	}
	if err := out.Commit(); err != nil {
		return rows, err
	}
	log.Info().Str("output", parquetPath).Int64("rows", rows).Msg("parquet written")
	return rows, nil
}

// PathFor returns the parquet file that sits next to a CSV table.
func PathFor(csvPath string) string {
	p := strings.TrimSuffix(csvPath, ".gz")
	if strings.HasSuffix(strings.ToLower(p), ".csv") {
		p = p[:len(p)-len(".csv")]
	}
	return p + ".parquet"
}
