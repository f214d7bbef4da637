// internal/app/features/units/handler.go
package units

import (
	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 64 << 10

// Handler is the feature-level entry point for Units.
type Handler struct {
	DB     *mongo.Database
	Log    *zap.Logger
	ErrLog *apierrors.ErrorLogger
}

// NewHandler constructs a Units handler bound to a DB and logger.
func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:     db,
		Log:    logger,
		ErrLog: errLog,
	}
}
