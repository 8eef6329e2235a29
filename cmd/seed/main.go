package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bimuz/bimuz-api/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection using GORM
	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("Bimuz API - Database Seeding")
	fmt.Println(separator)

	db := store.GetDB()
	if err := database.SeedDirector(db); err != nil {
		log.Fatalf("Seeding director failed: %v", err)
	}
	if err := database.SeedDemo(db); err != nil {
		log.Fatalf("Seeding demo data failed: %v", err)
	}

	fmt.Println()
	fmt.Println("Seeding completed.")
	fmt.Println("Director account comes from SEED_DIRECTOR_EMAIL and SEED_DIRECTOR_PASSWORD.")
	fmt.Println("If not set, director creation is skipped.")
}
