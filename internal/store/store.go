// Package store implements the persistence contracts in domain on Postgres.
package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var ErrNotFound = errors.New("not found")

// Migrate applies the up migrations in dir and returns the schema version.
// databaseURL takes the postgres:// or postgresql:// scheme.
func Migrate(databaseURL, dir string) (uint, error) {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
