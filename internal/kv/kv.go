package kv

import (
	"context"
)

// Store is the key-value contract the resource adapters are written against.
// It mirrors the small subset of Redis used by the service: string keys,
// hashes (field maps), sets and an atomic counter.
//
// Error semantics:
//
//   - Absent keys are not errors. GetFields returns an empty map, Members an
//     empty slice and GetString reports ok == false.
//   - Any failure to reach or talk to the backend is returned wrapped with
//     CommandError so callers can match ErrCommand.
//   - Implementations must be safe for concurrent use. Increment and the
//     conditional string writes (SetStringNX, CompareAndSwap,
//     CompareAndDelete) must be atomic.
type Store interface {
	// Increment atomically adds one to the integer at key and returns the new
	// value. A missing key counts from zero, so the first call returns 1.
	Increment(ctx context.Context, key string) (int64, error)

	// GetFields returns every field of the hash at key.
	GetFields(ctx context.Context, key string) (map[string]string, error)
	// SetFields creates the hash at key or merges fields into it.
	SetFields(ctx context.Context, key string, fields map[string]string) error
	// SetField overwrites a single hash field.
	SetField(ctx context.Context, key, field, value string) error

	// Delete removes key whatever its type. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Set operations. Members order is unspecified.
	AddMember(ctx context.Context, key, member string) error
	RemoveMember(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)

	// String values.
	GetString(ctx context.Context, key string) (string, bool, error)
	// SetStringNX sets key only if it does not exist and reports whether it
	// did so.
	SetStringNX(ctx context.Context, key, value string) (bool, error)
	// CompareAndSwap replaces the value at key with next only if it currently
	// holds old. A missing key never matches.
	CompareAndSwap(ctx context.Context, key, old, next string) (bool, error)
	// CompareAndDelete removes key only if it currently holds old.
	CompareAndDelete(ctx context.Context, key, old string) (bool, error)

	// Keys returns every key matching a glob pattern (`*`, `?`, `[...]`).
	// Order is unspecified.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
