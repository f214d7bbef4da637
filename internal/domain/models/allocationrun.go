// internal/domain/models/allocationrun.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AllocationRun is the history record of one finished run, successful or
// not. The committed Allocation only reflects the last successful run.
type AllocationRun struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UnitID     primitive.ObjectID `bson:"unit_id" json:"unit_id"`
	RunID      string             `bson:"run_id" json:"run_id"`
	Outcome    string             `bson:"outcome" json:"outcome"`
	Status     string             `bson:"status" json:"status"`
	Objective  int                `bson:"objective" json:"objective"`
	Students   int                `bson:"students" json:"students"`
	Projects   int                `bson:"projects" json:"projects"`
	Placed     int                `bson:"placed" json:"placed"`
	Requester  string             `bson:"requester,omitempty" json:"requester,omitempty"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time          `bson:"started_at" json:"started_at"`
	FinishedAt time.Time          `bson:"finished_at" json:"finished_at"`
}

// Duration is how long the run took.
func (r AllocationRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
