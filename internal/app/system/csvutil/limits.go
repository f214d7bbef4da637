// internal/app/system/csvutil/limits.go
package csvutil

// MaxUploadSize caps the body of any CSV import.
const MaxUploadSize = 5 << 20 // 5 MB

// Kind names the document an import parses.
type Kind string

const (
	KindProjects    Kind = "projects"
	KindStudents    Kind = "students"
	KindPreferences Kind = "preferences"
)

// Row caps per import. A preference file has one row per ranked choice, so
// it is allowed a few rows for every student a unit can hold.
const (
	MaxProjectRows    = 2000
	MaxStudentRows    = 10000
	MaxPreferenceRows = 5 * MaxStudentRows
)

// MaxRows returns the row cap for kind, or 0 (unlimited) for an unknown kind.
func MaxRows(kind Kind) int {
	switch kind {
	case KindProjects:
		return MaxProjectRows
	case KindStudents:
		return MaxStudentRows
	case KindPreferences:
		return MaxPreferenceRows
	}
	return 0
}

// OptionsFor returns the parse options used when importing kind.
func OptionsFor(kind Kind) ParseOptions {
	opts := DefaultParseOptions()
	opts.MaxRows = MaxRows(kind)
	return opts
}
