package csvout

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

// Writer is a buffered RFC 4180 writer that counts data rows. Cells holding
// commas, quotes or newlines are quoted by encoding/csv.
type Writer struct {
	w    *csv.Writer
	buf  *bufio.Writer
	rows int64
}

func New(w io.Writer) *Writer {
	bw := bufio.NewWriterSize(w, 1<<20)
	return &Writer{
		w:   csv.NewWriter(bw),
		buf: bw,
	}
}

// NewWithHeader writes the header row immediately.
func NewWithHeader(w io.Writer, header []string) (*Writer, error) {
	cw := New(w)
	if err := cw.WriteHeader(header); err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *Writer) WriteHeader(header []string) error {
	if err := cw.w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (cw *Writer) WriteRow(row []string) error {
	if err := cw.w.Write(row); err != nil {
		return fmt.Errorf("write row %d: %w", cw.rows+1, err)
	}
	cw.rows++
	return nil
}

// Rows is the number of data rows written (header excluded).
func (cw *Writer) Rows() int64 { return cw.rows }

func (cw *Writer) Flush() error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return err
	}
	return cw.buf.Flush()
}
