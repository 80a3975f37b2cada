package seed

import (
	"context"
	"fmt"
	"log"

	"conduit/internal/models"
	"conduit/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumArticles int
	ShouldClean bool
	// SkipBcrypt hashes at the minimum cost for fast local runs.
	SkipBcrypt bool
	// DryRun builds entities without writing them.
	DryRun  bool
	MaxDays int
	// RandSeed makes generated data reproducible when non-zero.
	RandSeed int64
}

// tagPool is the vocabulary generated articles draw their tags from.
var tagPool = []string{
	"go", "python", "django", "htmx", "postgres", "redis", "docker", "kubernetes",
	"testing", "performance", "security", "frontend", "backend", "devops", "linux",
	"career", "design", "databases", "open source", "tutorial",
}

// Seeder populates a database with generated or fixture data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	tags    repository.TagRepository
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(db, opts),
		tags:    repository.NewTagRepository(db),
	}
}

// Result counts what a seeding run created.
type Result struct {
	Users     int
	Articles  int
	Comments  int
	Favorites int
	Follows   int
}

// Seed generates users, tagged articles, comments, favorites and follows.
func (s *Seeder) Seed(ctx context.Context) (*Result, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d articles...", s.opts.NumUsers, s.opts.NumArticles)

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	res := &Result{}
	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, user)
	}
	res.Users = len(users)
	log.Printf("✓ %d users created", res.Users)
	if len(users) == 0 {
		return res, nil
	}

	var tags []models.Tag
	if !s.opts.DryRun {
		var err error
		if tags, err = s.tags.GetOrCreate(ctx, tagPool); err != nil {
			return nil, fmt.Errorf("failed to create tags: %w", err)
		}
	}

	rng := s.factory.rng
	for i := 0; i < s.opts.NumArticles; i++ {
		author := users[rng.Intn(len(users))]
		article, err := s.factory.CreateArticle(author, pickTags(rng.Perm(len(tags)), tags, rng.Intn(4)))
		if err != nil {
			return nil, fmt.Errorf("failed to create articles: %w", err)
		}
		res.Articles++

		for j := 0; j < rng.Intn(5); j++ {
			if _, err := s.factory.CreateComment(users[rng.Intn(len(users))], article); err != nil {
				return nil, fmt.Errorf("failed to create comments: %w", err)
			}
			res.Comments++
		}
		for _, idx := range rng.Perm(len(users))[:rng.Intn(len(users)+1)] {
			if users[idx].ID == article.UserID {
				continue
			}
			if err := s.factory.CreateFavorite(users[idx], article); err != nil {
				return nil, fmt.Errorf("failed to create favorites: %w", err)
			}
			res.Favorites++
		}
	}
	log.Printf("✓ %d articles, %d comments and %d favorites created", res.Articles, res.Comments, res.Favorites)

	for _, follower := range users {
		for _, idx := range rng.Perm(len(users))[:rng.Intn(len(users)/2+1)] {
			if users[idx].ID == follower.ID {
				continue
			}
			if err := s.factory.CreateFollow(follower, users[idx]); err != nil {
				return nil, fmt.Errorf("failed to create follows: %w", err)
			}
			res.Follows++
		}
	}
	log.Printf("✓ %d follows created", res.Follows)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

func pickTags(order []int, tags []models.Tag, n int) []models.Tag {
	if n > len(order) {
		n = len(order)
	}
	picked := make([]models.Tag, 0, n)
	for _, idx := range order[:n] {
		picked = append(picked, tags[idx])
	}
	return picked
}

// ClearAll deletes every row the application owns, children first, so it
// works with and without foreign key enforcement.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"comments", "article_favorites", "article_tags", "user_follows", "articles", "tags", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
