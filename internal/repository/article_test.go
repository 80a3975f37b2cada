package repository

import (
	"context"
	"testing"

	"conduit/internal/models"
	"conduit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleRepository_FavoriteAnnotations(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	reader := testutil.CreateUser(t, db, "reader@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	article := testutil.CreateArticle(t, db, author, "Go generics")

	count, err := repo.SetFavorite(ctx, article.ID, reader.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = repo.SetFavorite(ctx, article.ID, other.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	t.Run("viewer who favorited", func(t *testing.T) {
		got, err := repo.GetByID(ctx, article.ID, reader.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.NumFavorites)
		assert.True(t, got.IsFavorite)
		assert.Equal(t, author.ID, got.User.ID)
	})

	t.Run("viewer who did not favorite", func(t *testing.T) {
		got, err := repo.GetByID(ctx, article.ID, author.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.NumFavorites)
		assert.False(t, got.IsFavorite)
	})

	t.Run("anonymous viewer", func(t *testing.T) {
		articles, err := repo.List(ctx, ArticleFilter{})
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, 2, articles[0].NumFavorites)
		assert.False(t, articles[0].IsFavorite)
	})
}

func TestArticleRepository_SetFavoriteIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	reader := testutil.CreateUser(t, db, "reader@example.com")
	article := testutil.CreateArticle(t, db, author, "Idempotent")

	for i := 0; i < 2; i++ {
		count, err := repo.SetFavorite(ctx, article.ID, reader.ID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
	for i := 0; i < 2; i++ {
		count, err := repo.SetFavorite(ctx, article.ID, reader.ID, false)
		require.NoError(t, err)
		assert.Zero(t, count)
	}
}

func TestArticleRepository_OwnershipPredicates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	stranger := testutil.CreateUser(t, db, "stranger@example.com")
	article := testutil.CreateArticle(t, db, author, "Mine")

	_, err := repo.GetOwned(ctx, article.ID, stranger.ID)
	assert.True(t, models.IsNotFound(err))

	owned, err := repo.GetOwned(ctx, article.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", owned.Title)

	_, err = repo.GetFavoritable(ctx, article.ID, author.ID)
	assert.True(t, models.IsNotFound(err))

	_, err = repo.GetFavoritable(ctx, article.ID, stranger.ID)
	assert.NoError(t, err)

	_, err = repo.GetByID(ctx, 9999, 0)
	assert.True(t, models.IsNotFound(err))
}

func TestArticleRepository_ListFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	tagRepo := NewTagRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	tagged := &models.Article{Title: "Tagged", UserID: alice.ID}
	tags, err := tagRepo.GetOrCreate(ctx, []string{"go", "web"})
	require.NoError(t, err)
	tagged.Tags = tags
	require.NoError(t, repo.Create(ctx, tagged))

	plain := testutil.CreateArticle(t, db, bob, "Plain")
	_, err = repo.SetFavorite(ctx, plain.ID, alice.ID, true)
	require.NoError(t, err)

	byTag, err := repo.List(ctx, ArticleFilter{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "Tagged", byTag[0].Title)
	assert.Equal(t, []string{"go", "web"}, byTag[0].TagNames())

	byAuthor, err := repo.List(ctx, ArticleFilter{AuthorID: bob.ID})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "Plain", byAuthor[0].Title)

	favorited, err := repo.List(ctx, ArticleFilter{FavoritedOnly: true, ViewerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, favorited, 1)
	assert.True(t, favorited[0].IsFavorite)

	all, err := repo.List(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Plain", all[0].Title, "newest first")
}

func TestArticleRepository_UpdateReplacesTags(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	tagRepo := NewTagRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	article := &models.Article{Title: "Before", UserID: author.ID}
	article.Tags, _ = tagRepo.GetOrCreate(ctx, []string{"python", "django"})
	require.NoError(t, repo.Create(ctx, article))

	article.Title = "After"
	var err error
	article.Tags, err = tagRepo.GetOrCreate(ctx, []string{"go"})
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, article))

	got, err := repo.GetByID(ctx, article.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, []string{"go"}, got.TagNames())

	article.Tags = nil
	require.NoError(t, repo.Update(ctx, article))
	got, err = repo.GetByID(ctx, article.ID, author.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestArticleRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	reader := testutil.CreateUser(t, db, "reader@example.com")
	article := testutil.CreateArticle(t, db, author, "Doomed")
	_, err := repo.SetFavorite(ctx, article.ID, reader.ID, true)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{Content: "bye", UserID: reader.ID, ArticleID: article.ID}).Error)

	require.NoError(t, repo.Delete(ctx, article))

	var comments, favorites int64
	db.Model(&models.Comment{}).Where("article_id = ?", article.ID).Count(&comments)
	db.Model(&models.ArticleFavorite{}).Where("article_id = ?", article.ID).Count(&favorites)
	assert.Zero(t, comments)
	assert.Zero(t, favorites)

	_, err = repo.GetByID(ctx, article.ID, author.ID)
	assert.True(t, models.IsNotFound(err))
}
