package model

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels lists every table owned by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Session{},
		&Property{},
		&Lead{},
		&RateLimitRecord{},
		&SecurityLog{},
		&Setting{},
	}
}

// Migrate creates or updates the schema and seeds the fixed role set.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := SeedRoles(db); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}
