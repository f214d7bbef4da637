// internal/domain/models/unit.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Unit is the scoping context (a course offering) that owns one population
// of projects, students and preferences.
//
// NOTE:
//   - Allocating is the caller-held "allocation in progress" flag. It is set
//     by the dispatcher before a run and cleared after, whatever the outcome.
//     The engine never reads or writes it.
//   - AllocationStatus is the status of the allocation currently committed
//     for the unit. A failed run does not replace a previous successful
//     status; LastRunStatus always records the most recent outcome.
type Unit struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Code     string             `bson:"code" json:"code"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"name_ci"`
	Year     string             `bson:"year" json:"year"`
	Semester string             `bson:"semester" json:"semester"`

	// Submission workflow limits. Not enforced at allocation time.
	MinPreferences *int `bson:"min_preferences,omitempty" json:"min_preferences,omitempty"`
	MaxPreferences *int `bson:"max_preferences,omitempty" json:"max_preferences,omitempty"`

	ManagerEmail string `bson:"manager_email,omitempty" json:"manager_email,omitempty"`

	Allocating       bool       `bson:"allocating" json:"allocating"`
	AllocationStatus string     `bson:"allocation_status,omitempty" json:"allocation_status,omitempty"`
	LastRunStatus    string     `bson:"last_run_status,omitempty" json:"last_run_status,omitempty"`
	LastRunAt        *time.Time `bson:"last_run_at,omitempty" json:"last_run_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
