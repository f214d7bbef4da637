// internal/app/features/units/types.go
package units

import (
	"github.com/dalemusser/projectalloc/internal/app/system/paging"
	"github.com/dalemusser/projectalloc/internal/domain/models"
)

// createRequest is the JSON body of POST /units.
type createRequest struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Year           string `json:"year"`
	Semester       string `json:"semester"`
	MinPreferences *int   `json:"min_preferences"`
	MaxPreferences *int   `json:"max_preferences"`
	ManagerEmail   string `json:"manager_email"`
}

// unitView is the JSON body of GET /units/{unitID}.
type unitView struct {
	models.Unit
	StatusLabel string `json:"status_label"`
	Projects    int64  `json:"projects"`
	Students    int64  `json:"students"`
	Preferences int64  `json:"preferences"`
}

// listResponse is the JSON body of GET /units.
type listResponse struct {
	Units []models.Unit `json:"units"`
	Total int64         `json:"total"`
	paging.Page
}
