package reader

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/valyala/fastjson"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

const maxLineSize = 16 * 1024 * 1024

// JSONLReader reads newline-delimited JSON, one event object per line.
type JSONLReader struct{}

// NewJSONLReader creates a new JSONL reader.
func NewJSONLReader() *JSONLReader {
	return &JSONLReader{}
}

// ReadFile implements Reader.
func (p *JSONLReader) ReadFile(ctx context.Context, path string) (*model.Table, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := p.Read(ctx, f)
	if err != nil {
		return nil, annotate(err, path)
	}
	return table, nil
}

// Read parses JSONL from r. Columns are ordered by first appearance.
// A JSON null, or a key absent from a line, is a null value. Non-string
// scalars keep their JSON text; nested values keep their JSON encoding.
func (p *JSONLReader) Read(ctx context.Context, r io.Reader) (*model.Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var parser fastjson.Parser
	b := newTableBuilder(nil)

	line := 0
	for sc.Scan() {
		line++
		if err := canceled(ctx, line); err != nil {
			return nil, err
		}

		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}

		v, err := parser.ParseBytes(data)
		if err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "invalid json").WithContext("line", line)
		}
		obj, err := v.Object()
		if err != nil {
			return nil, lferrors.New(lferrors.CodeInvalidFormat, "line is not a json object").
				WithContext("line", line)
		}

		row := make(model.Row, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			name := string(key)
			b.addColumn(name)
			if s, ok := scalarText(val); ok {
				row[name] = s
			}
		})
		b.addRow(row)
	}
	if err := sc.Err(); err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read jsonl").WithContext("line", line+1)
	}

	return b.table, nil
}

// scalarText renders a JSON value as text. It reports false for null.
func scalarText(v *fastjson.Value) (string, bool) {
	switch v.Type() {
	case fastjson.TypeNull:
		return "", false
	case fastjson.TypeString:
		return string(v.GetStringBytes()), true
	default:
		return v.String(), true
	}
}
