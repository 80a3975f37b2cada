// Command seed fills the Conduit database with generated or fixture data.
package main

import (
	"context"
	"flag"
	"log"

	"conduit/internal/config"
	"conduit/internal/database"
	"conduit/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numArticles := flag.Int("articles", 60, "Number of articles to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	maxDays := flag.Int("max-days", 90, "Spread creation dates over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	fixture := flag.String("fixture", "", "Load a YAML fixture file instead of generating data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumArticles: *numArticles,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *fast,
		DryRun:      *dryRun,
		MaxDays:     *maxDays,
		RandSeed:    *randSeed,
	})

	ctx := context.Background()
	var res *seed.Result
	if *fixture != "" {
		log.Printf("Loading fixture %s", *fixture)
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("❌ Fixture invalid: %v", err)
		}
		res, err = s.ApplyFixture(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	} else {
		log.Printf("Target: %d users, %d articles, clean=%v\n", *numUsers, *numArticles, *shouldClean)
		res, err = s.Seed(ctx)
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Printf("✨ Done: %d users, %d articles, %d comments, %d favorites, %d follows",
		res.Users, res.Articles, res.Comments, res.Favorites, res.Follows)
	if *fixture == "" && !*dryRun {
		log.Printf("📧 All generated users have the password: %s", seed.DefaultPassword)
	}
}
