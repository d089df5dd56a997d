// Package metadata is a small key/value store for process state that must
// survive restarts, such as the last maintenance run.
package metadata

import "context"

type Repository interface {
	// Get returns common.ErrorNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
