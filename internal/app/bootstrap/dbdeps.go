// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/projectalloc/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Services is created in ConnectDB and filled in by Startup. WAFFLE
	// passes DBDeps by value, so later hooks share it through the pointer.
	Services *Services
}

// Services are the long-lived components built at startup.
type Services struct {
	Dispatcher *workers.AllocationDispatcher
}
