// Package db persists identities, breadcrumb chains and epochs in
// Postgres through GORM.
package db

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errDBUnavailable = errors.New("db unavailable")

type Store struct {
	DB          *gorm.DB
	Identities  *IdentityRepository
	Breadcrumbs *BreadcrumbRepository
	Epochs      *EpochRepository
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{
		DB:          gdb,
		Identities:  NewIdentityRepository(gdb),
		Breadcrumbs: NewBreadcrumbRepository(gdb),
		Epochs:      NewEpochRepository(gdb),
	}, nil
}

// Migrate creates or updates the schema. Safe to run on every start.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return errDBUnavailable
	}
	return s.DB.AutoMigrate(&IdentityModel{}, &BreadcrumbModel{}, &EpochModel{})
}
