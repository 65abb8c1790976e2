package database

import (
	"context"
	"database/sql"
)

// Repository is a key-value store for a single entity type.
// Get returns nil without error when the key does not exist, Delete of a
// missing key is not an error.
type Repository[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	GetAll(ctx context.Context) ([]*T, error)
	Put(ctx context.Context, value *T) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	Images() Repository[Image]
	// Showcases persists the image order of every showcase; Put applies only
	// the rank changes needed to reach the given order.
	Showcases() Repository[Showcase]
	Avatars() Repository[Avatar]
}
