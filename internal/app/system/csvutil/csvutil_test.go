package csvutil

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseProjects_ValidRows(t *testing.T) {
	csv := `Identifier,Name,Min Students,Max Students,Description
P1,Robot Arm,2,4,Build a robot arm
P2,"Compilers, Again",0,3,`

	result, err := ParseProjects(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParseProjects() error = %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("ParseProjects() unexpected errors: %v", result.Errors)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("ParseProjects() got %d rows, want 2", len(result.Rows))
	}

	want := ProjectRow{Identifier: "P1", Name: "Robot Arm", MinStudents: 2, MaxStudents: 4, Description: "Build a robot arm"}
	if result.Rows[0] != want {
		t.Errorf("Row 0 = %+v, want %+v", result.Rows[0], want)
	}
	if result.Rows[1].Name != "Compilers, Again" {
		t.Errorf("Row 1 Name = %q", result.Rows[1].Name)
	}
}

func TestParseProjects_HeaderColumnsInAnyOrder(t *testing.T) {
	csv := `max,min,title,code
4,1,Robot Arm,P1`

	result, err := ParseProjects(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParseProjects() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("ParseProjects() got %d rows, want 1 (errors %v)", len(result.Rows), result.Errors)
	}
	want := ProjectRow{Identifier: "P1", Name: "Robot Arm", MinStudents: 1, MaxStudents: 4}
	if result.Rows[0] != want {
		t.Errorf("Row = %+v, want %+v", result.Rows[0], want)
	}
}

func TestParseProjects_HeaderMissingColumn(t *testing.T) {
	csv := `identifier,name,min_students
P1,Robot Arm,1`

	if _, err := ParseProjects(strings.NewReader(csv), DefaultParseOptions()); err == nil {
		t.Error("ParseProjects() expected an error for a header without max_students")
	}
}

func TestParseProjects_NoHeader(t *testing.T) {
	csv := `P1,Robot Arm,2,4
P2,Compilers,0,3`

	result, err := ParseProjects(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParseProjects() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Errorf("ParseProjects() got %d rows, want 2", len(result.Rows))
	}
}

func TestParseProjects_InvalidRows(t *testing.T) {
	tests := []struct {
		name        string
		csv         string
		errContains string
	}{
		{"missing identifier", ",Robot Arm,1,2", "missing identifier"},
		{"missing name", "P1,,1,2", "missing name"},
		{"non-numeric min", "P1,Robot Arm,two,2", "min_students"},
		{"negative max", "P1,Robot Arm,0,-1", "max_students"},
		{"max below min", "P1,Robot Arm,3,2", "less than min_students"},
		{"duplicate identifier", "P1,Robot Arm,1,2\nP1,Other,1,2", "duplicate identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseProjects(strings.NewReader(tt.csv), DefaultParseOptions())
			if err != nil {
				t.Fatalf("ParseProjects() error = %v", err)
			}
			if len(result.Errors) != 1 {
				t.Fatalf("ParseProjects() got %d errors, want 1", len(result.Errors))
			}
			if !strings.Contains(result.Errors[0].Reason, tt.errContains) {
				t.Errorf("Error reason %q doesn't contain %q", result.Errors[0].Reason, tt.errContains)
			}
		})
	}
}

func TestParseStudents_BOMAndBlankRows(t *testing.T) {
	csv := "\ufeffStudent ID,Name\n\n21000001,Ada Lovelace\n\n21000002,\n"

	result, err := ParseStudents(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParseStudents() error = %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("ParseStudents() unexpected errors: %v", result.Errors)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("ParseStudents() got %d rows, want 2", len(result.Rows))
	}
	if result.Rows[0].StudentID != "21000001" || result.Rows[0].Name != "Ada Lovelace" {
		t.Errorf("Row 0 = %+v", result.Rows[0])
	}
	if result.Rows[1].Name != "" {
		t.Errorf("Row 1 Name = %q, want empty", result.Rows[1].Name)
	}
}

func TestParseStudents_Duplicate(t *testing.T) {
	csv := "s1,Ada\ns1,Again"

	result, err := ParseStudents(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParseStudents() error = %v", err)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Reason, "duplicate") {
		t.Errorf("ParseStudents() errors = %v, want one duplicate", result.Errors)
	}
	if result.Errors[0].Line != 2 {
		t.Errorf("Line = %d, want 2", result.Errors[0].Line)
	}
}

func TestParsePreferences(t *testing.T) {
	csv := `student_id,project_identifier,rank
s1,P1,1
s1,P2,3
s1,P3,3
s1,P1,4
s2,P1,0
s2,P2,x
,P1,1
s3,,1`

	result, err := ParsePreferences(strings.NewReader(csv), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParsePreferences() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Errorf("ParsePreferences() got %d rows, want 2", len(result.Rows))
	}

	wantReasons := []string{
		"uses rank 3 twice",
		"ranks project P1 twice",
		"not a positive whole number",
		"not a positive whole number",
		"missing student_id",
		"missing project_identifier",
	}
	if len(result.Errors) != len(wantReasons) {
		t.Fatalf("ParsePreferences() got %d errors, want %d: %v", len(result.Errors), len(wantReasons), result.Errors)
	}
	for i, want := range wantReasons {
		if !strings.Contains(result.Errors[i].Reason, want) {
			t.Errorf("error %d = %q, want it to contain %q", i, result.Errors[i].Reason, want)
		}
	}
	if result.Errors[0].Line != 4 {
		t.Errorf("first error on line %d, want 4", result.Errors[0].Line)
	}
	if result.Rows[1].Line != 3 || result.Rows[1].Rank != 3 {
		t.Errorf("Row 1 = %+v", result.Rows[1])
	}
}

func TestParse_MaxRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("student_id,name\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("s,Someone\n")
	}

	_, err := ParseStudents(strings.NewReader(sb.String()), ParseOptions{MaxRows: 5})
	if err != ErrTooManyRows {
		t.Errorf("ParseStudents() error = %v, want ErrTooManyRows", err)
	}
}

func TestParse_EmptyFile(t *testing.T) {
	result, err := ParsePreferences(strings.NewReader(""), DefaultParseOptions())
	if err != nil {
		t.Fatalf("ParsePreferences() error = %v", err)
	}
	if len(result.Rows) != 0 || result.HasErrors() {
		t.Errorf("ParsePreferences() = %+v, want empty", result)
	}
}

func TestParse_MalformedQuotes(t *testing.T) {
	_, err := ParseStudents(strings.NewReader("s1,\"unterminated\n"), DefaultParseOptions())
	if err == nil {
		t.Error("ParseStudents() expected an error for a malformed row")
	}
}

func TestResult_Summary(t *testing.T) {
	r := &Result[StudentRow]{}
	if s := r.Summary(3); s != "" {
		t.Errorf("Summary() = %q, want empty", s)
	}

	for i := 0; i < 10; i++ {
		r.Errors = append(r.Errors, RowError{Line: i + 1, Reason: "bad"})
	}
	s := r.Summary(3)
	if !strings.Contains(s, "10 row(s) are invalid") {
		t.Errorf("Summary() missing count: %q", s)
	}
	if !strings.Contains(s, "and 7 more") {
		t.Errorf("Summary() missing remainder: %q", s)
	}
}

func TestConstants(t *testing.T) {
	if MaxUploadSize != 5<<20 {
		t.Errorf("MaxUploadSize = %d, want %d (5MB)", MaxUploadSize, 5<<20)
	}
}

func TestMaxRows_PerKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindProjects, MaxProjectRows},
		{KindStudents, MaxStudentRows},
		{KindPreferences, MaxPreferenceRows},
		{Kind("other"), 0},
	}
	for _, tt := range tests {
		if got := MaxRows(tt.kind); got != tt.want {
			t.Errorf("MaxRows(%q) = %d, want %d", tt.kind, got, tt.want)
		}
		if got := OptionsFor(tt.kind).MaxRows; got != tt.want {
			t.Errorf("OptionsFor(%q).MaxRows = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if MaxPreferenceRows <= MaxStudentRows {
		t.Errorf("MaxPreferenceRows = %d, want more than MaxStudentRows (%d)", MaxPreferenceRows, MaxStudentRows)
	}
}

func TestOptionsFor_ProjectCapRejectsLargerFile(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Identifier,Name,Min Students,Max Students\n")
	for i := 0; i <= MaxProjectRows; i++ {
		fmt.Fprintf(&sb, "P%d,Project %d,0,3\n", i, i)
	}
	if _, err := ParseProjects(strings.NewReader(sb.String()), OptionsFor(KindProjects)); err != ErrTooManyRows {
		t.Errorf("ParseProjects() error = %v, want ErrTooManyRows", err)
	}
	// The same rows fit under the student cap.
	if _, err := ParseProjects(strings.NewReader(sb.String()), OptionsFor(KindStudents)); err != nil {
		t.Errorf("ParseProjects() with student cap error = %v", err)
	}
}
