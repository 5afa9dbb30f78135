package kv

import (
	"errors"
	"fmt"
)

var (
	ErrCommand        = errors.New("kv command error")
	ErrConnect        = errors.New("kv connect error")
	ErrClose          = errors.New("kv close error")
	ErrUnknownBackend = errors.New("unknown kv backend")
	ErrMigration      = errors.New("kv migration error")
)

// CommandError wraps a failed store operation on key.
func CommandError(err error, op, key string) error {
	return fmt.Errorf("%w %s %s: %w", ErrCommand, op, key, err)
}

func ConnectError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrConnect, name, err)
}

func CloseError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrClose, name, err)
}

// MigrationError wraps a failure applying the named schema migration.
func MigrationError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrMigration, name, err)
}
