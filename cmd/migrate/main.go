package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/tripmart/marketplace-backend/internal/config"
	"github.com/tripmart/marketplace-backend/internal/database"
)

func main() {
	var (
		dbURLFlag string
		source    string
		down      int
		version   bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&source, "source", "", "migration source URL (defaults to MIGRATIONS_PATH or file://migrations)")
	flag.IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	flag.BoolVar(&version, "version", false, "print the applied schema version and exit")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if source == "" {
		source = os.Getenv("MIGRATIONS_PATH")
	}
	if source == "" {
		source = "file://migrations"
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	switch {
	case version:
		v, dirty, err := database.MigrationVersion(db.DB.DB, source)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("version: %d dirty: %t\n", v, dirty)
	case down > 0:
		if err := database.RollbackMigrations(db.DB.DB, source, down); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Rolled back %d migration(s)\n", down)
	default:
		if err := database.RunMigrations(db.DB.DB, source); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Migrations applied")
	}
}
