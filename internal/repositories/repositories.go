package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/festa/internal/shared"
)

// Namespaces used by the client.
const (
	NamespaceSession       = "session"
	NamespaceOptimistic    = "optimistic_read"
	NamespaceFailedPosts   = "failed_posts"
	NamespacePreferences   = "preferences"
	NamespaceEnrichedPosts = "enriched_posts"
)

// Store is a namespaced, durable string key-value store.
//
// Get reports ok=false when the key is absent. List returns a copy of every entry in a namespace.
type Store interface {
	Get(namespace, key string) (value string, ok bool, err error)
	Put(namespace, key, value string) error
	Delete(namespace, key string) error
	List(namespace string) (map[string]string, error)
	Close() error
}

// OpenStore opens the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg shared.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := shared.NewDatabase(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, cfg)
		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return NewSQLiteStore(db), nil
	case "pebble":
		return OpenPebbleStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}
