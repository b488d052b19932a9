// Package repo defines a generic repository interface and a Neo4j
// implementation used by the circuit archive.
package repo

import "context"

// Repository is a generic CRUD interface over an entity type.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
