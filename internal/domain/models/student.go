// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is a member of a unit's population. StudentID is the
// human-readable identifier (unique within a unit); ID is the record key.
type Student struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UnitID    primitive.ObjectID `bson:"unit_id" json:"unit_id"`
	StudentID string             `bson:"student_id" json:"student_id"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
