package main

import (
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/oggyb/arena-signals/internal/config"
	"github.com/oggyb/arena-signals/internal/db"
)

func main() {
	envFile := pflag.String("env-file", ".env", "optional env file loaded before reading the environment")
	file := pflag.StringP("file", "f", "", "arenas YAML file to upsert; without it the demo data set is loaded")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	if *file == "" {
		if err := db.SeedTestData(database); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}
		log.Println("Seeding completed.")
		return
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *file, err)
	}
	defer f.Close()

	seeds, err := db.ParseArenaSeeds(f)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", *file, err)
	}
	if err := db.SeedArenas(database, seeds); err != nil {
		log.Fatalf("failed to seed arenas: %v", err)
	}
	log.Printf("Seeded %d arenas from %s.", len(seeds), *file)
}
