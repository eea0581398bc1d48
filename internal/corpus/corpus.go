// Package corpus manages the per-document vector tables that back retrieval.
package corpus

import (
	"context"
	"errors"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

var ErrTableNotFound = errors.New("table not found")

// Backend is a vector store holding one table per source document
type Backend interface {
	TableExists(ctx context.Context, name string) (bool, error)
	CreateTable(ctx context.Context, name string) error
	DropTable(ctx context.Context, name string) error
	Insert(ctx context.Context, name string, records []models.IndexedRecord) error
	Count(ctx context.Context, name string) (int, error)
	// Search returns up to k records nearest to vector, closest first.
	// A missing table yields ErrTableNotFound.
	Search(ctx context.Context, name string, vector []float32, k int) ([]models.IndexedRecord, error)
	ListTables(ctx context.Context) ([]string, error)
}
