// internal/domain/models/preference.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Preference is one ranked choice of a student for a project.
// Exactly one document per (student_id, project_id) and per (student_id, rank).
// Rank is positive; 1 is most preferred. Ranks are not required to be contiguous.
type Preference struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UnitID    primitive.ObjectID `bson:"unit_id" json:"unit_id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	ProjectID primitive.ObjectID `bson:"project_id" json:"project_id"`
	Rank      int                `bson:"rank" json:"rank"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
