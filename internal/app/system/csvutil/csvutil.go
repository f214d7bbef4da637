// Package csvutil parses the project, student and preference lists a unit
// manager uploads.
//
// Each file may start with a header row. When it does, columns are matched
// by name (case-insensitive, spaces and dashes read as underscores) and may
// appear in any order; otherwise the documented column order is assumed.
// A UTF-8 byte order mark is ignored and blank rows are skipped. Parsing
// never touches the database.
package csvutil

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrTooManyRows is returned when a file has more data rows than allowed.
var ErrTooManyRows = errors.New("csv has too many rows")

// ParseOptions bounds a parse. MaxRows of 0 means unlimited.
type ParseOptions struct {
	MaxRows int
}

func DefaultParseOptions() ParseOptions {
	return ParseOptions{}
}

// RowError describes one rejected row. Line is 1-based and counts the header.
type RowError struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Raw    []string `json:"raw,omitempty"`
}

// Result holds the accepted rows and the row errors of one file.
type Result[T any] struct {
	Rows   []T        `json:"-"`
	Errors []RowError `json:"errors,omitempty"`
}

func (r *Result[T]) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary renders up to maxShow errors as one line each.
func (r *Result[T]) Summary(maxShow int) string {
	if len(r.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) are invalid", len(r.Errors))
	for i, e := range r.Errors {
		if i == maxShow {
			fmt.Fprintf(&b, "\n... and %d more", len(r.Errors)-maxShow)
			break
		}
		fmt.Fprintf(&b, "\nline %d: %s", e.Line, e.Reason)
	}
	return b.String()
}

func (r *Result[T]) reject(rec record, format string, args ...interface{}) {
	r.Errors = append(r.Errors, RowError{Line: rec.line, Reason: fmt.Sprintf(format, args...), Raw: rec.fields})
}

type record struct {
	line   int
	fields []string
}

// get returns column i trimmed, or "" when the row is short or the column
// is absent (i < 0).
func (r record) get(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// layout maps column names (and their accepted aliases) to indexes.
type layout map[string]int

func (l layout) col(name string) int {
	if i, ok := l[name]; ok {
		return i
	}
	return -1
}

// columnSpec lists the canonical column names in positional order and the
// aliases accepted in a header row.
type columnSpec struct {
	order    []string
	aliases  map[string]string
	required []string
}

func (c columnSpec) positional() layout {
	l := make(layout, len(c.order))
	for i, name := range c.order {
		l[name] = i
	}
	return l
}

// fromHeader returns the layout described by first, or nil when first does
// not look like a header row (none of the required columns named).
func (c columnSpec) fromHeader(first []string) layout {
	l := layout{}
	for i, h := range first {
		name := normalizeHeader(h)
		if canon, ok := c.aliases[name]; ok {
			name = canon
		}
		if _, dup := l[name]; !dup {
			l[name] = i
		}
	}
	for _, req := range c.required {
		if _, ok := l[req]; ok {
			return l
		}
	}
	return nil
}

// readRecords reads all non-blank rows of r and resolves the column layout.
func readRecords(r io.Reader, opts ParseOptions, spec columnSpec) ([]record, layout, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var recs []record
	var cols layout
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := reader.FieldPos(0)
		if blank(fields) {
			continue
		}
		if cols == nil && len(recs) == 0 {
			if cols = spec.fromHeader(fields); cols != nil {
				for _, req := range spec.required {
					if cols.col(req) < 0 {
						return nil, nil, fmt.Errorf("header is missing the %q column", req)
					}
				}
				continue
			}
		}
		if opts.MaxRows > 0 && len(recs) >= opts.MaxRows {
			return nil, nil, ErrTooManyRows
		}
		recs = append(recs, record{line: line, fields: fields})
	}
	if cols == nil {
		cols = spec.positional()
	}
	return recs, cols, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return n, nil
}
