// Package projector maps one decoded JSON line onto a fixed field schema.
package projector

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/bytedance/sonic"

	"redditetl/internal/schema"
)

// ErrUndecodable marks a line that is not a single JSON object. Callers count
// it and move on; it is never fatal for a file.
var ErrUndecodable = errors.New("projector: line is not a JSON object")

// RawRecord is one decoded input line.
type RawRecord = map[string]any

// numbers stay as their literal text so ids and epoch seconds round-trip
var api = sonic.Config{
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()

// DecodeLine decodes a JSONL line. Blank lines, arrays, scalars and broken
// JSON all come back as ErrUndecodable.
func DecodeLine(line []byte) (RawRecord, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, ErrUndecodable
	}
	var rec RawRecord
	if err := api.Unmarshal(line, &rec); err != nil {
		return nil, errors.Join(ErrUndecodable, err)
	}
	if rec == nil {
		return nil, ErrUndecodable
	}
	return rec, nil
}

// Project returns one value per schema field, in schema order. Absent fields
// become "".
func Project(rec RawRecord, fields schema.FieldSchema) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		if v, ok := rec[f]; ok {
			row[i] = Format(v)
		}
	}
	return row
}

// Format renders a decoded JSON value as a CSV cell.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		// objects and arrays are kept as compact JSON
		b, err := api.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Projector binds a schema so the per-line loop is one call.
type Projector struct {
	fields schema.FieldSchema
}

func New(fields schema.FieldSchema) *Projector {
	return &Projector{fields: fields}
}

// ProjectLine decodes and projects a single line.
func (p *Projector) ProjectLine(line []byte) ([]string, error) {
	rec, err := DecodeLine(line)
	if err != nil {
		return nil, err
	}
	return Project(rec, p.fields), nil
}
