package service

import (
	"context"
	"errors"
	"testing"

	"conduit/internal/models"
	"conduit/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// articleRepoStub is a stub for repository.ArticleRepository.
type articleRepoStub struct {
	listFn           func(context.Context, repository.ArticleFilter) ([]*models.Article, error)
	getByIDFn        func(context.Context, uint, uint) (*models.Article, error)
	getOwnedFn       func(context.Context, uint, uint) (*models.Article, error)
	getFavoritableFn func(context.Context, uint, uint) (*models.Article, error)
	createFn         func(context.Context, *models.Article) error
	updateFn         func(context.Context, *models.Article) error
	deleteFn         func(context.Context, *models.Article) error
	setFavoriteFn    func(context.Context, uint, uint, bool) (int64, error)
}

func (s *articleRepoStub) List(ctx context.Context, filter repository.ArticleFilter) ([]*models.Article, error) {
	return s.listFn(ctx, filter)
}
func (s *articleRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *articleRepoStub) GetOwned(ctx context.Context, id, authorID uint) (*models.Article, error) {
	return s.getOwnedFn(ctx, id, authorID)
}
func (s *articleRepoStub) GetFavoritable(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	return s.getFavoritableFn(ctx, id, viewerID)
}
func (s *articleRepoStub) Create(ctx context.Context, article *models.Article) error {
	return s.createFn(ctx, article)
}
func (s *articleRepoStub) Update(ctx context.Context, article *models.Article) error {
	return s.updateFn(ctx, article)
}
func (s *articleRepoStub) Delete(ctx context.Context, article *models.Article) error {
	return s.deleteFn(ctx, article)
}
func (s *articleRepoStub) SetFavorite(ctx context.Context, articleID, userID uint, on bool) (int64, error) {
	return s.setFavoriteFn(ctx, articleID, userID, on)
}

func noopArticleRepo() *articleRepoStub {
	return &articleRepoStub{
		listFn:    func(_ context.Context, _ repository.ArticleFilter) ([]*models.Article, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Article, error) { return &models.Article{ID: id}, nil },
		getOwnedFn: func(_ context.Context, id, authorID uint) (*models.Article, error) {
			return &models.Article{ID: id, UserID: authorID}, nil
		},
		getFavoritableFn: func(_ context.Context, id, _ uint) (*models.Article, error) { return &models.Article{ID: id}, nil },
		createFn:         func(_ context.Context, _ *models.Article) error { return nil },
		updateFn:         func(_ context.Context, _ *models.Article) error { return nil },
		deleteFn:         func(_ context.Context, _ *models.Article) error { return nil },
		setFavoriteFn:    func(_ context.Context, _, _ uint, _ bool) (int64, error) { return 0, nil },
	}
}

// tagRepoStub is a stub for repository.TagRepository.
type tagRepoStub struct {
	getOrCreateFn  func(context.Context, []string) ([]models.Tag, error)
	allFn          func(context.Context) ([]models.Tag, error)
	searchPrefixFn func(context.Context, string) ([]models.Tag, error)
}

func (s *tagRepoStub) GetOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	return s.getOrCreateFn(ctx, names)
}
func (s *tagRepoStub) All(ctx context.Context) ([]models.Tag, error) {
	return s.allFn(ctx)
}
func (s *tagRepoStub) SearchPrefix(ctx context.Context, prefix string) ([]models.Tag, error) {
	return s.searchPrefixFn(ctx, prefix)
}

func noopTagRepo() *tagRepoStub {
	return &tagRepoStub{
		getOrCreateFn: func(_ context.Context, names []string) ([]models.Tag, error) {
			out := make([]models.Tag, 0, len(names))
			for i, n := range names {
				out = append(out, models.Tag{ID: uint(i + 1), Name: n})
			}
			return out, nil
		},
		allFn:          func(_ context.Context) ([]models.Tag, error) { return nil, nil },
		searchPrefixFn: func(_ context.Context, _ string) ([]models.Tag, error) { return nil, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint) (*models.Comment, error)
	getOwnedFn      func(context.Context, uint, uint) (*models.Comment, error)
	listByArticleFn func(context.Context, uint) ([]*models.Comment, error)
	updateFn        func(context.Context, *models.Comment) error
	deleteFn        func(context.Context, *models.Comment) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) GetOwned(ctx context.Context, id, authorID uint) (*models.Comment, error) {
	return s.getOwnedFn(ctx, id, authorID)
}
func (s *commentRepoStub) ListByArticle(ctx context.Context, articleID uint) ([]*models.Comment, error) {
	return s.listByArticleFn(ctx, articleID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) Delete(ctx context.Context, comment *models.Comment) error {
	return s.deleteFn(ctx, comment)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:  func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		getOwnedFn: func(_ context.Context, id, authorID uint) (*models.Comment, error) {
			return &models.Comment{ID: id, UserID: authorID}, nil
		},
		listByArticleFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ *models.Comment) error { return nil },
		deleteFn:        func(_ context.Context, _ *models.Comment) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	emailExistsFn    func(context.Context, string, uint) (bool, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	setPasswordFn    func(context.Context, uint, string) error
	getFollowableFn  func(context.Context, uint, uint) (*models.User, error)
	setFollowFn      func(context.Context, uint, uint, bool) (int64, error)
	isFollowingFn    func(context.Context, uint, uint) (bool, error)
	countFollowersFn func(context.Context, uint) (int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) EmailExists(ctx context.Context, email string, excludeID uint) (bool, error) {
	return s.emailExistsFn(ctx, email, excludeID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetPassword(ctx context.Context, id uint, hash string) error {
	return s.setPasswordFn(ctx, id, hash)
}
func (s *userRepoStub) GetFollowable(ctx context.Context, id, viewerID uint) (*models.User, error) {
	return s.getFollowableFn(ctx, id, viewerID)
}
func (s *userRepoStub) SetFollow(ctx context.Context, userID, followerID uint, on bool) (int64, error) {
	return s.setFollowFn(ctx, userID, followerID, on)
}
func (s *userRepoStub) IsFollowing(ctx context.Context, userID, followerID uint) (bool, error) {
	return s.isFollowingFn(ctx, userID, followerID)
}
func (s *userRepoStub) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowersFn(ctx, userID)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		emailExistsFn:    func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		setPasswordFn:    func(_ context.Context, _ uint, _ string) error { return nil },
		getFollowableFn:  func(_ context.Context, id, _ uint) (*models.User, error) { return &models.User{ID: id}, nil },
		setFollowFn:      func(_ context.Context, _, _ uint, _ bool) (int64, error) { return 0, nil },
		isFollowingFn:    func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		countFollowersFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// assertFormError asserts that err is a *models.FormError with a message on
// each of fields, and returns its field map.
func assertFormError(t *testing.T, err error, fields ...string) models.FormErrors {
	t.Helper()
	require.Error(t, err)
	fe, ok := models.AsFormErrors(err)
	require.True(t, ok, "expected FormError, got %T: %v", err, err)
	for _, f := range fields {
		assert.True(t, fe.Has(f), "expected error on %q, got %v", f, fe)
	}
	return fe
}

// assertNotFound asserts that err is an AppError with code NOT_FOUND.
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
