// internal/app/features/allocations/handler.go
package allocations

import (
	"context"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Dispatcher queues allocation runs. *workers.AllocationDispatcher
// satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, unitID primitive.ObjectID, requester string) error
}

// Handler serves a unit's allocation: starting runs, reporting the
// committed result and exporting it.
type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	ErrLog   *apierrors.ErrorLogger
	Dispatch Dispatcher
	Loader   *allocation.StoreLoader
}

func NewHandler(db *mongo.Database, dispatch Dispatcher, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		ErrLog:   errLog,
		Dispatch: dispatch,
		Loader:   allocation.NewStoreLoader(db, logger),
	}
}
