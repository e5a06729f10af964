package db

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArenaSeed is one entry of an arenas YAML file:
//
//	arenas:
//	  - id: campus-quad
//	    name: Campus Quad
//	    latitude: 30.1742433
//	    longitude: 77.3068033
//	    radius: 100
//	    start: 2026-10-14T15:00:00Z
//	    end: 2026-10-14T17:00:00Z
type ArenaSeed struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Latitude  float64   `yaml:"latitude"`
	Longitude float64   `yaml:"longitude"`
	Radius    float64   `yaml:"radius"`
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`
	Inactive  bool      `yaml:"inactive"`
}

// ParseArenaSeeds decodes an arenas YAML document.
func ParseArenaSeeds(r io.Reader) ([]ArenaSeed, error) {
	var doc struct {
		Arenas []ArenaSeed `yaml:"arenas"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode arenas yaml: %w", err)
	}
	for i, a := range doc.Arenas {
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("arena #%d: id and name are required", i+1)
		}
		if err := ValidateKeyPart(a.ID); err != nil {
			return nil, fmt.Errorf("arena #%d: %w", i+1, err)
		}
		if !a.End.After(a.Start) {
			return nil, fmt.Errorf("arena %s: end must be after start", a.ID)
		}
	}
	return doc.Arenas, nil
}

// SeedArenas upserts the given arenas.
func SeedArenas(db *gorm.DB, seeds []ArenaSeed) error {
	for _, s := range seeds {
		arena := Arena{
			Doc:       Doc{ID: s.ID, Version: 1},
			Name:      s.Name,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Radius:    s.Radius,
			StartTime: s.Start.UTC(),
			EndTime:   s.End.UTC(),
			IsActive:  !s.Inactive,
		}
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&arena).Error; err != nil {
			return fmt.Errorf("failed to seed arena %s: %w", s.ID, err)
		}
	}
	return nil
}

// SeedTestData resets the database and populates it with a demo arena and users.
//
// Behavior:
//  1. Clears every table.
//  2. Creates one arena around a campus point whose window spans the next two hours.
//  3. Creates 20 users (10 male, 10 female) with mixed sexualities.
//
// Nobody is activated; activation goes through the service so budgets and
// bravery points are applied the normal way.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, m := range []any{&Message{}, &Match{}, &Signal{}, &ActiveUser{}, &Report{}, &User{}, &Arena{}} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
	}
	log.Println("Cleared existing data")

	now := time.Now().UTC()
	if err := SeedArenas(db, []ArenaSeed{{
		ID:        "campus-quad",
		Name:      "Campus Quad",
		Latitude:  30.1742433,
		Longitude: 77.3068033,
		Radius:    100,
		Start:     now.Add(-5 * time.Minute),
		End:       now.Add(2 * time.Hour),
	}}); err != nil {
		return err
	}

	sexualities := []string{SexualityStraight, SexualityStraight, SexualityBisexual, SexualityGay, SexualityLesbian}
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}
		sexuality := sexualities[r.Intn(len(sexualities))]
		if gender == "male" && sexuality == SexualityLesbian {
			sexuality = SexualityStraight
		}
		if gender == "female" && sexuality == SexualityGay {
			sexuality = SexualityStraight
		}

		user := User{
			Doc:          Doc{ID: fmt.Sprintf("user%d", i), Version: 1},
			Name:         fmt.Sprintf("User %d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			Gender:       gender,
			Sexuality:    sexuality,
			PromptAnswer: "Ask me about my favourite spot on campus",
			Level:        1,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 1 arena and 20 users.")

	return nil
}
