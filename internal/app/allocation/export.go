package allocation

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"student_id", "student_name", "project_identifier", "project_name", "preference_rank"}

// WriteCSV writes one row per student in the committed allocation, ordered
// by student_id. Unplaced students have empty project columns; students
// placed in a project they did not rank have an empty rank.
func WriteCSV(w io.Writer, projects []models.Project, students []models.Student, alloc *models.Allocation) error {
	byProject := make(map[primitive.ObjectID]models.Project, len(projects))
	for _, p := range projects {
		byProject[p.ID] = p
	}
	byStudent := make(map[primitive.ObjectID]models.Student, len(students))
	for _, s := range students {
		byStudent[s.ID] = s
	}

	rows := make([][]string, 0, len(alloc.Assignments))
	for _, as := range alloc.Assignments {
		st, ok := byStudent[as.StudentID]
		if !ok {
			// student removed since the run
			continue
		}
		row := []string{st.StudentID, st.Name, "", "", ""}
		if as.ProjectID != nil {
			if p, ok := byProject[*as.ProjectID]; ok {
				row[2], row[3] = p.Identifier, p.Name
			}
		}
		if as.Rank != nil {
			row[4] = strconv.Itoa(*as.Rank)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// FileName is the download name of a unit's allocation export.
func FileName(unit models.Unit) string {
	code := unit.Code
	if code == "" {
		code = unit.ID.Hex()
	}
	return code + "-project-allocation.csv"
}
