package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"conduit/internal/models"
	"conduit/internal/repository"
	"conduit/internal/tags"
	"conduit/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed demo.yml
var demoFixture []byte

// Fixture is a hand-written dataset. Users are referenced by email.
type Fixture struct {
	Users    []FixtureUser    `yaml:"users"`
	Articles []FixtureArticle `yaml:"articles"`
}

type FixtureUser struct {
	Email    string   `yaml:"email"`
	Name     string   `yaml:"name"`
	Password string   `yaml:"password"`
	Bio      string   `yaml:"bio"`
	Image    string   `yaml:"image"`
	Follows  []string `yaml:"follows"`
}

type FixtureArticle struct {
	Author      string           `yaml:"author"`
	Title       string           `yaml:"title"`
	Summary     string           `yaml:"summary"`
	Content     string           `yaml:"content"`
	Tags        string           `yaml:"tags"`
	FavoritedBy []string         `yaml:"favorited_by"`
	Comments    []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// ParseFixture decodes a YAML fixture and checks its references.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixtureFile reads and parses the fixture at path.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path) // #nosec G304: path comes from the operator
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseFixture(f)
}

func (fx *Fixture) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for i := range fx.Users {
		u := &fx.Users[i]
		u.Email = validation.NormalizeEmail(u.Email)
		if err := validation.ValidateEmail(u.Email); err != nil {
			return fmt.Errorf("user %d: %w", i, err)
		}
		if known[u.Email] {
			return fmt.Errorf("user %s listed twice", u.Email)
		}
		if u.Password == "" {
			return fmt.Errorf("user %s has no password", u.Email)
		}
		known[u.Email] = true
	}
	ref := func(what, email string) error {
		if !known[validation.NormalizeEmail(email)] {
			return fmt.Errorf("%s refers to unknown user %q", what, email)
		}
		return nil
	}
	for _, u := range fx.Users {
		for _, email := range u.Follows {
			if err := ref("follows of "+u.Email, email); err != nil {
				return err
			}
		}
	}
	for i, a := range fx.Articles {
		if strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("article %d has no title", i)
		}
		if err := ref("author of "+a.Title, a.Author); err != nil {
			return err
		}
		for _, email := range a.FavoritedBy {
			if err := ref("favorite on "+a.Title, email); err != nil {
				return err
			}
		}
		for _, c := range a.Comments {
			if err := ref("comment on "+a.Title, c.Author); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyFixture writes fx through the repositories. Favorites and follows
// go through the same idempotent toggles the site uses.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (*Result, error) {
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := repository.NewUserRepository(tx)
		articleRepo := repository.NewArticleRepository(tx)
		tagRepo := repository.NewTagRepository(tx)
		commentRepo := repository.NewCommentRepository(tx)

		users := make(map[string]*models.User, len(fx.Users))
		for _, fu := range fx.Users {
			hashed, err := s.factory.hashPassword(fu.Password)
			if err != nil {
				return err
			}
			user := &models.User{Email: fu.Email, Name: fu.Name, Bio: fu.Bio, Password: hashed}
			if fu.Image != "" {
				image := fu.Image
				user.Image = &image
			}
			if err := userRepo.Create(ctx, user); err != nil {
				return fmt.Errorf("create user %s: %w", fu.Email, err)
			}
			users[fu.Email] = user
			res.Users++
		}
		for _, fu := range fx.Users {
			for _, email := range fu.Follows {
				target := users[validation.NormalizeEmail(email)]
				if target.ID == users[fu.Email].ID {
					continue
				}
				if _, err := userRepo.SetFollow(ctx, target.ID, users[fu.Email].ID, true); err != nil {
					return err
				}
				res.Follows++
			}
		}

		for _, fa := range fx.Articles {
			author := users[validation.NormalizeEmail(fa.Author)]
			articleTags, err := tagRepo.GetOrCreate(ctx, tags.ParseTags(fa.Tags))
			if err != nil {
				return err
			}
			article := &models.Article{
				Title:   strings.TrimSpace(fa.Title),
				Summary: fa.Summary,
				Content: fa.Content,
				UserID:  author.ID,
				Tags:    articleTags,
			}
			if err := articleRepo.Create(ctx, article); err != nil {
				return fmt.Errorf("create article %q: %w", fa.Title, err)
			}
			res.Articles++

			for _, email := range fa.FavoritedBy {
				fan := users[validation.NormalizeEmail(email)]
				if fan.ID == author.ID {
					continue
				}
				if _, err := articleRepo.SetFavorite(ctx, article.ID, fan.ID, true); err != nil {
					return err
				}
				res.Favorites++
			}
			for _, fc := range fa.Comments {
				comment := &models.Comment{
					Content:   strings.TrimSpace(fc.Content),
					UserID:    users[validation.NormalizeEmail(fc.Author)].ID,
					ArticleID: article.ID,
				}
				if err := commentRepo.Create(ctx, comment); err != nil {
					return err
				}
				res.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Demo loads the bundled demo dataset into an empty database. A database
// that already has users is left alone.
func Demo(ctx context.Context, db *gorm.DB) (*Result, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &Result{}, nil
	}
	fx, err := ParseFixture(bytes.NewReader(demoFixture))
	if err != nil {
		return nil, err
	}
	return NewSeeder(db, Options{}).ApplyFixture(ctx, fx)
}
