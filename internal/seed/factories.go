// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"conduit/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "conduit-Demo-2024"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	if opts.RandSeed != 0 {
		seed = opts.RandSeed
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		nextID: 1000,
	}
}

// hashPassword hashes password with bcrypt. SkipBcrypt uses the minimum
// cost so generated users can still sign in.
func (f *Factory) hashPassword(password string) (string, error) {
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// passwordHash hashes DefaultPassword once per factory.
func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	hashed, err := f.hashPassword(DefaultPassword)
	if err != nil {
		return "", err
	}
	f.hash = hashed
	return f.hash, nil
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs a user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	image := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID())
	user := &models.User{
		Email:    strings.ToLower(fmt.Sprintf("%s.%d@example.com", gofakeit.Username(), gofakeit.Number(100, 9999))),
		Name:     gofakeit.Name(),
		Bio:      gofakeit.Sentence(10),
		Image:    &image,
		Password: hashed,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.Email)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildArticle constructs an article by author without persisting it.
func (f *Factory) BuildArticle(author *models.User, overrides ...func(*models.Article)) *models.Article {
	title := strings.TrimSuffix(gofakeit.Sentence(f.rng.Intn(5)+3), ".")
	if len(title) > 120 {
		title = title[:120]
	}
	var content strings.Builder
	content.WriteString("## " + gofakeit.HipsterSentence(4) + "\n\n")
	for i := 0; i < f.rng.Intn(3)+2; i++ {
		content.WriteString(gofakeit.Paragraph(1, 4, 12, " "))
		content.WriteString("\n\n")
	}
	content.WriteString("- " + gofakeit.HackerPhrase() + "\n- " + gofakeit.HackerPhrase() + "\n")

	created := f.createdAt()
	article := &models.Article{
		Title:     title,
		Summary:   gofakeit.Sentence(12),
		Content:   content.String(),
		UserID:    author.ID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, override := range overrides {
		override(article)
	}
	return article
}

// CreateArticle persists a sample article with the given tags.
func (f *Factory) CreateArticle(author *models.User, tags []models.Tag, overrides ...func(*models.Article)) (*models.Article, error) {
	article := f.BuildArticle(author, overrides...)
	article.Tags = tags
	if f.opts.DryRun {
		f.nextID++
		article.ID = f.nextID
		log.Printf("[dry-run] CreateArticle: user=%d title=%q", article.UserID, article.Title)
		return article, nil
	}
	if err := f.db.Omit("User").Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

// CreateComment constructs and persists a sample comment on article.
func (f *Factory) CreateComment(author *models.User, article *models.Article, overrides ...func(*models.Comment)) (*models.Comment, error) {
	created := article.CreatedAt.Add(time.Duration(f.rng.Intn(72)+1) * time.Hour)
	if created.After(time.Now()) {
		created = time.Now()
	}
	comment := &models.Comment{
		Content:   gofakeit.Sentence(f.rng.Intn(15) + 5),
		UserID:    author.ID,
		ArticleID: article.ID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, override := range overrides {
		override(comment)
	}
	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}
	if err := f.db.Omit("User", "Article").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateFavorite persists a favorite of article by user. Repeats are ignored.
func (f *Factory) CreateFavorite(user *models.User, article *models.Article) error {
	if f.opts.DryRun || user.ID == article.UserID {
		return nil
	}
	fav := &models.ArticleFavorite{ArticleID: article.ID, UserID: user.ID}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Omit("Article", "User").Create(fav).Error
}

// CreateFollow persists follower following user. Repeats are ignored.
func (f *Factory) CreateFollow(follower, user *models.User) error {
	if f.opts.DryRun || follower.ID == user.ID {
		return nil
	}
	follow := &models.UserFollow{UserID: user.ID, FollowerID: follower.ID}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Omit("User", "Follower").Create(follow).Error
}
