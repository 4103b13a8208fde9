// Package graph defines the persistence boundary for detected
// cross-stack relationships.
package graph

import (
	"context"

	"github.com/stackmesh/stackmesh/internal/relation"
)

// Repository provides graph storage for detected relationships.
type Repository interface {
	// StoreRelationships persists a detection run's surviving pairs.
	StoreRelationships(ctx context.Context, rels []relation.CrossStackRelationship) error
	// LoadRelationships retrieves all stored relationships.
	LoadRelationships(ctx context.Context) ([]relation.CrossStackRelationship, error)
	// QueryRoutesForCallSite returns the paths of routes a call site URL
	// resolves to.
	QueryRoutesForCallSite(ctx context.Context, url string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
