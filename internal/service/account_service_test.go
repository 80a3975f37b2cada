package service

import (
	"context"
	"strings"
	"testing"

	"conduit/internal/featureflags"
	"conduit/internal/models"
	"conduit/internal/repository"
	"conduit/internal/testutil"
	"conduit/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const strongPassword = "plum-Orchard-47!"

func newAccountService(userRepo repository.UserRepository, flags string) *AccountService {
	svc := NewAccountService(userRepo, noopArticleRepo(), validation.DefaultPolicy(), featureflags.NewManager(flags), nil)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestAccountService_Register_Validation(t *testing.T) {
	t.Parallel()

	taken := noopUserRepo()
	taken.emailExistsFn = func(_ context.Context, email string, _ uint) (bool, error) {
		return email == "taken@example.com", nil
	}
	taken.createFn = func(_ context.Context, _ *models.User) error {
		panic("invalid registration must not be stored")
	}
	svc := newAccountService(taken, "")

	tests := []struct {
		name    string
		input   RegisterInput
		field   string
		message string
	}{
		{"missing email", RegisterInput{Name: "n", Password: strongPassword}, "email", "This field is required."},
		{"bad email", RegisterInput{Email: "nope", Name: "n", Password: strongPassword}, "email", "Enter a valid email address."},
		{"email taken case insensitive", RegisterInput{Email: "TAKEN@example.com", Name: "n", Password: strongPassword}, "email", emailTakenMessage},
		{"missing name", RegisterInput{Email: "a@example.com", Password: strongPassword}, "name", "This field is required."},
		{"name too long", RegisterInput{Email: "a@example.com", Name: strings.Repeat("n", 61), Password: strongPassword}, "name", "Ensure this value has at most 60 characters (it has 61)."},
		{"missing password", RegisterInput{Email: "a@example.com", Name: "n"}, "password", "This field is required."},
		{"common password", RegisterInput{Email: "a@example.com", Name: "n", Password: "password"}, "password", "This password is too common."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Register(context.Background(), tt.input)
			fe := assertFormError(t, err, tt.field)
			assert.Contains(t, fe.Get(tt.field), tt.message)
		})
	}
}

func TestAccountService_Register_ConfirmPassword(t *testing.T) {
	t.Parallel()

	svc := newAccountService(noopUserRepo(), "confirm_password=on")
	require.True(t, svc.ConfirmPasswordEnabled())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@example.com", Name: "Ann", Password: strongPassword, PasswordConfirm: strongPassword + "x",
	})
	fe := assertFormError(t, err, "password2")
	assert.Equal(t, []string{"The two password fields didn’t match."}, fe.Get("password2"))

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "a@example.com", Name: "Ann", Password: strongPassword, PasswordConfirm: strongPassword,
	})
	assert.NoError(t, err)
}

func TestAccountService_Register_HashesPassword(t *testing.T) {
	t.Parallel()

	var stored *models.User
	repo := noopUserRepo()
	repo.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 1
		stored = u
		return nil
	}
	svc := newAccountService(repo, "")

	user, err := svc.Register(context.Background(), RegisterInput{
		Email: " Ann@Example.com ", Name: " Ann ", Password: strongPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Equal(t, "ann@example.com", stored.Email)
	assert.Equal(t, "Ann", stored.Name)
	assert.NotEqual(t, strongPassword, stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(strongPassword)))
}

func TestAccountService_Authenticate(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)
	repo := noopUserRepo()
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email == "ann@example.com" {
			return &models.User{ID: 3, Email: email, Password: string(hash)}, nil
		}
		return nil, nil
	}
	svc := newAccountService(repo, "")
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "ANN@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, uint(3), user.ID)

	_, err = svc.Authenticate(ctx, "ann@example.com", "wrong")
	wrongPassword := assertFormError(t, err, "")

	_, err = svc.Authenticate(ctx, "ghost@example.com", strongPassword)
	unknownEmail := assertFormError(t, err, "")

	assert.Equal(t, wrongPassword, unknownEmail, "failures are indistinguishable")
}

func TestAccountService_UpdateSettings(t *testing.T) {
	t.Parallel()

	t.Run("invalid image keeps submitted values", func(t *testing.T) {
		t.Parallel()
		svc := newAccountService(noopUserRepo(), "")
		user, changed, err := svc.UpdateSettings(context.Background(), 1, SettingsInput{
			Email: "ann@example.com", Name: "Ann", Image: "ftp://example.com/a.png",
		})
		assertFormError(t, err, "image")
		assert.False(t, changed)
		assert.Equal(t, "Ann", user.Name)
	})

	t.Run("password change", func(t *testing.T) {
		t.Parallel()
		var newHash string
		repo := noopUserRepo()
		repo.setPasswordFn = func(_ context.Context, _ uint, hash string) error {
			newHash = hash
			return nil
		}
		svc := newAccountService(repo, "")
		user, changed, err := svc.UpdateSettings(context.Background(), 1, SettingsInput{
			Email: "ann@example.com", Name: "Ann", Bio: "hi", Image: "https://example.com/a.png", Password: strongPassword,
		})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "https://example.com/a.png", user.ImageURL())
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte(strongPassword)))
	})

	t.Run("own email is not taken", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.emailExistsFn = func(_ context.Context, _ string, excludeID uint) (bool, error) {
			return excludeID != 1, nil
		}
		svc := newAccountService(repo, "")
		_, changed, err := svc.UpdateSettings(context.Background(), 1, SettingsInput{Email: "ann@example.com", Name: "Ann"})
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestAccountService_ToggleFollow_Self(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getFollowableFn = func(_ context.Context, id, viewerID uint) (*models.User, error) {
		if id == viewerID {
			return nil, models.NewNotFoundError("User", id)
		}
		return &models.User{ID: id}, nil
	}
	repo.setFollowFn = func(_ context.Context, _, _ uint, on bool) (int64, error) {
		if on {
			return 1, nil
		}
		return 0, nil
	}
	svc := newAccountService(repo, "")

	_, err := svc.ToggleFollow(context.Background(), 4, 4, true)
	assertNotFound(t, err)

	state, err := svc.ToggleFollow(context.Background(), 4, 5, true)
	require.NoError(t, err)
	assert.True(t, state.IsFollowing)
	assert.Equal(t, int64(1), state.NumFollowers)
}

// TestAccountService_Profile runs against a real database to cover the
// follower and favorites annotations together.
func TestAccountService_Profile(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db)
	articles := repository.NewArticleRepository(db)
	svc := NewAccountService(users, articles, nil, nil, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author@example.com")
	fan := testutil.CreateUser(t, db, "fan@example.com")
	liked := testutil.CreateArticle(t, db, author, "Liked")
	testutil.CreateArticle(t, db, author, "Ignored")

	_, err := svc.ToggleFollow(ctx, author.ID, fan.ID, true)
	require.NoError(t, err)
	_, err = articles.SetFavorite(ctx, liked.ID, fan.ID, true)
	require.NoError(t, err)

	view, err := svc.Profile(ctx, author.ID, fan.ID, false)
	require.NoError(t, err)
	assert.True(t, view.IsFollowing)
	assert.Equal(t, int64(1), view.NumFollowers)
	assert.Len(t, view.Articles, 2)

	view, err = svc.Profile(ctx, author.ID, 0, true)
	require.NoError(t, err)
	assert.False(t, view.IsFollowing)
	require.Len(t, view.Articles, 1)
	assert.Equal(t, "Liked", view.Articles[0].Title)
	assert.False(t, view.Articles[0].IsFavorite)

	_, err = svc.Profile(ctx, 999, 0, false)
	assertNotFound(t, err)
}
