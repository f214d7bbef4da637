// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project is a capacity-constrained destination for students.
// Identifier is unique within a unit; 0 <= MinStudents <= MaxStudents.
type Project struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	UnitID      primitive.ObjectID `bson:"unit_id" json:"unit_id"`
	Identifier  string             `bson:"identifier" json:"identifier"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	MinStudents int                `bson:"min_students" json:"min_students"`
	MaxStudents int                `bson:"max_students" json:"max_students"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
