package csvutil

import (
	"io"
)

// ProjectRow is one accepted row of a project list.
type ProjectRow struct {
	Identifier  string
	Name        string
	MinStudents int
	MaxStudents int
	Description string
}

var projectColumns = columnSpec{
	order: []string{"identifier", "name", "min_students", "max_students", "description"},
	aliases: map[string]string{
		"id":           "identifier",
		"project":      "identifier",
		"project_id":   "identifier",
		"code":         "identifier",
		"title":        "name",
		"project_name": "name",
		"min":          "min_students",
		"minimum":      "min_students",
		"max":          "max_students",
		"maximum":      "max_students",
	},
	required: []string{"identifier", "name", "min_students", "max_students"},
}

// ParseProjects reads identifier,name,min_students,max_students[,description].
// Identifiers must be unique within the file.
func ParseProjects(r io.Reader, opts ParseOptions) (*Result[ProjectRow], error) {
	recs, cols, err := readRecords(r, opts, projectColumns)
	if err != nil {
		return nil, err
	}

	res := &Result[ProjectRow]{}
	seen := map[string]int{}
	for _, rec := range recs {
		row := ProjectRow{
			Identifier:  rec.get(cols.col("identifier")),
			Name:        rec.get(cols.col("name")),
			Description: rec.get(cols.col("description")),
		}
		if row.Identifier == "" {
			res.reject(rec, "missing identifier")
			continue
		}
		if first, dup := seen[row.Identifier]; dup {
			res.reject(rec, "duplicate identifier %q (first on line %d)", row.Identifier, first)
			continue
		}
		seen[row.Identifier] = rec.line
		if row.Name == "" {
			res.reject(rec, "missing name")
			continue
		}
		if row.MinStudents, err = parseCount(rec.get(cols.col("min_students"))); err != nil {
			res.reject(rec, "min_students: %v", err)
			continue
		}
		if row.MaxStudents, err = parseCount(rec.get(cols.col("max_students"))); err != nil {
			res.reject(rec, "max_students: %v", err)
			continue
		}
		if row.MaxStudents < row.MinStudents {
			res.reject(rec, "max_students %d is less than min_students %d", row.MaxStudents, row.MinStudents)
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
