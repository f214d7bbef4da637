package csvutil

import "io"

// StudentRow is one accepted row of a student list. Name may be empty.
type StudentRow struct {
	StudentID string
	Name      string
}

var studentColumns = columnSpec{
	order: []string{"student_id", "name"},
	aliases: map[string]string{
		"id":           "student_id",
		"student":      "student_id",
		"student_no":   "student_id",
		"student_name": "name",
		"full_name":    "name",
	},
	required: []string{"student_id"},
}

// ParseStudents reads student_id[,name]. Student ids must be unique within
// the file.
func ParseStudents(r io.Reader, opts ParseOptions) (*Result[StudentRow], error) {
	recs, cols, err := readRecords(r, opts, studentColumns)
	if err != nil {
		return nil, err
	}

	res := &Result[StudentRow]{}
	seen := map[string]int{}
	for _, rec := range recs {
		row := StudentRow{
			StudentID: rec.get(cols.col("student_id")),
			Name:      rec.get(cols.col("name")),
		}
		if row.StudentID == "" {
			res.reject(rec, "missing student_id")
			continue
		}
		if first, dup := seen[row.StudentID]; dup {
			res.reject(rec, "duplicate student_id %q (first on line %d)", row.StudentID, first)
			continue
		}
		seen[row.StudentID] = rec.line
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
