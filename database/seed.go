package database

import (
	"errors"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/utils/auth"
)

// SeedDirector creates the bootstrap director account when the users table
// has no employee logins yet. Credentials come from SEED_DIRECTOR_EMAIL and
// SEED_DIRECTOR_PASSWORD; seeding is skipped when either is unset.
func SeedDirector(db *gorm.DB) error {
	email := os.Getenv("SEED_DIRECTOR_EMAIL")
	password := os.Getenv("SEED_DIRECTOR_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil // already seeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("seed lookup failed: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := model.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     "Director",
			Role:         model.RoleDirector,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create director user: %w", err)
		}

		employee := model.Employee{
			UserID:   user.ID,
			FullName: user.FullName,
			Role:     model.RoleDirector,
		}
		if err := tx.Create(&employee).Error; err != nil {
			return fmt.Errorf("failed to create director employee: %w", err)
		}

		log.Printf("Seeded director account %s", email)
		return nil
	})
}
