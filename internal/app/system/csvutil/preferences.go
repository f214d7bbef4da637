package csvutil

import (
	"fmt"
	"io"
	"strconv"
)

// PreferenceRow is one accepted row of a preference list.
type PreferenceRow struct {
	Line              int
	StudentID         string
	ProjectIdentifier string
	Rank              int
}

var preferenceColumns = columnSpec{
	order: []string{"student_id", "project_identifier", "rank"},
	aliases: map[string]string{
		"student":         "student_id",
		"project":         "project_identifier",
		"project_id":      "project_identifier",
		"identifier":      "project_identifier",
		"preference":      "rank",
		"preference_rank": "rank",
	},
	required: []string{"student_id", "project_identifier", "rank"},
}

// ParsePreferences reads student_id,project_identifier,rank. Ranks must be
// positive, and a student may not repeat a rank or a project. Whether the
// student and project exist is checked by the caller.
func ParsePreferences(r io.Reader, opts ParseOptions) (*Result[PreferenceRow], error) {
	recs, cols, err := readRecords(r, opts, preferenceColumns)
	if err != nil {
		return nil, err
	}

	type key struct{ student, other string }
	seenRank := map[key]int{}
	seenProject := map[key]int{}

	res := &Result[PreferenceRow]{}
	for _, rec := range recs {
		row := PreferenceRow{
			Line:              rec.line,
			StudentID:         rec.get(cols.col("student_id")),
			ProjectIdentifier: rec.get(cols.col("project_identifier")),
		}
		if row.StudentID == "" {
			res.reject(rec, "missing student_id")
			continue
		}
		if row.ProjectIdentifier == "" {
			res.reject(rec, "missing project_identifier")
			continue
		}
		raw := rec.get(cols.col("rank"))
		rank, err := strconv.Atoi(raw)
		if err != nil || rank < 1 {
			res.reject(rec, "rank %q is not a positive whole number", raw)
			continue
		}
		row.Rank = rank

		rk := key{row.StudentID, fmt.Sprint(rank)}
		if first, dup := seenRank[rk]; dup {
			res.reject(rec, "student %s uses rank %d twice (first on line %d)", row.StudentID, rank, first)
			continue
		}
		pk := key{row.StudentID, row.ProjectIdentifier}
		if first, dup := seenProject[pk]; dup {
			res.reject(rec, "student %s ranks project %s twice (first on line %d)", row.StudentID, row.ProjectIdentifier, first)
			continue
		}
		seenRank[rk] = rec.line
		seenProject[pk] = rec.line
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
