// internal/app/features/uploadcsv/types.go
package uploadcsv

import "github.com/dalemusser/projectalloc/internal/app/system/csvutil"

// ImportSummary is the response of a project or student import.
type ImportSummary struct {
	Rows      int `json:"rows"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	// PreferencesRemoved counts preferences dropped with deleted records.
	PreferencesRemoved int64 `json:"preferences_removed"`
}

// PreferenceSummary is the response of a preference import. Skipped lists
// rows naming a student or project the unit does not have.
type PreferenceSummary struct {
	Rows     int                `json:"rows"`
	Imported int                `json:"imported"`
	Skipped  []csvutil.RowError `json:"skipped,omitempty"`
}
