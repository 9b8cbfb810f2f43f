package backend

import (
	"context"
	"slices"

	"pasti/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the stores of one backend. Catalog, Meals and Weights
// are often the same value. Publisher is nil when events are disabled.
type BackendResult struct {
	Catalog   ports.FoodCatalog
	Meals     ports.MealLedger
	Weights   ports.WeightLedger
	Publisher ports.EventPublisher

	// Ping reports backend health for readiness probes; nil means always ready.
	Ping    func(context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File and memory backends
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Event publishing, any backend; empty URL disables it
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
