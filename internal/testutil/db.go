// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"conduit/internal/config"
	"conduit/internal/database"
	"conduit/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory sqlite database with the full schema.
// Every call gets its own database, so tests can run in parallel.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		DBDriver:     database.DriverSQLite,
		DBSQLitePath: fmt.Sprintf("%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given email. The password column holds
// a placeholder, not a usable hash.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:    email,
		Name:     strings.Split(email, "@")[0],
		Password: "!",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateArticle inserts an article written by author.
func CreateArticle(t *testing.T, db *gorm.DB, author *models.User, title string) *models.Article {
	t.Helper()
	article := &models.Article{
		Title:   title,
		Summary: "summary of " + title,
		Content: "# " + title,
		UserID:  author.ID,
	}
	require.NoError(t, db.Omit("User").Create(article).Error)
	return article
}
