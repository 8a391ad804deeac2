package csvin

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
)

// Reader reads a headered CSV. Every record must have as many fields as the
// header; a short or long row is returned as an error by Next.
type Reader struct {
	cr     *csv.Reader
	header []string
	inited bool
}

type Options struct {
	Comma      rune
	LazyQuotes bool
	TrimSpace  bool
}

func New(r io.Reader, opt Options) *Reader {
	br := bufio.NewReaderSize(r, 1<<20)
	cr := csv.NewReader(br)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.TrimLeadingSpace = opt.TrimSpace
	return &Reader{cr: cr}
}

func (r *Reader) init() error {
	if r.inited {
		return nil
	}
	h, err := r.cr.Read()
	if err != nil {
		return err
	}
	if len(h) > 0 {
		h[0] = strings.TrimPrefix(h[0], "\ufeff")
	}
	r.header = h
	r.inited = true
	return nil
}

// Header returns the header row. An empty file yields io.EOF.
func (r *Reader) Header() ([]string, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	return r.header, nil
}

// Next returns the next data record; io.EOF at the end.
func (r *Reader) Next() ([]string, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	rec, err := r.cr.Read()
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Line is the input line of the last record read, for error messages.
func (r *Reader) Line() int {
	line, _ := r.cr.FieldPos(0)
	return line
}
