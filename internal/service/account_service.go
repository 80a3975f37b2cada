package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"conduit/internal/featureflags"
	"conduit/internal/models"
	"conduit/internal/notifications"
	"conduit/internal/observability"
	"conduit/internal/repository"
	"conduit/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	emailTakenMessage       = "User with this Email Address already exists."
	passwordMismatchMessage = "The two password fields didn’t match."
	loginFailedMessage      = "Please enter a correct email address and password. Note that both fields may be case-sensitive."
	passwordTooLongMessage  = "Ensure this value has at most 72 bytes."
)

// AccountService covers registration, login, settings, profiles and follows.
type AccountService struct {
	userRepo    repository.UserRepository
	articleRepo repository.ArticleRepository
	policy      validation.PasswordPolicy
	flags       *featureflags.Manager
	notifier    *notifications.Notifier
	hashCost    int
	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

// RegisterInput carries the registration form. PasswordConfirm is only
// checked when the confirm_password flag is on.
type RegisterInput struct {
	Email           string
	Name            string
	Password        string
	PasswordConfirm string
}

// SettingsInput carries the settings form. An empty Password keeps the
// current one.
type SettingsInput struct {
	Email    string
	Name     string
	Bio      string
	Image    string
	Password string
}

// ProfileView is everything the profile page shows.
type ProfileView struct {
	User         *models.User
	Articles     []*models.Article
	IsFollowing  bool
	NumFollowers int64
	Favorites    bool
}

// FollowState is the result of a follow toggle.
type FollowState struct {
	User         *models.User
	IsFollowing  bool
	NumFollowers int64
}

func NewAccountService(
	userRepo repository.UserRepository,
	articleRepo repository.ArticleRepository,
	policy validation.PasswordPolicy,
	flags *featureflags.Manager,
	notifier *notifications.Notifier,
) *AccountService {
	if policy == nil {
		policy = validation.DefaultPolicy()
	}
	return &AccountService{
		userRepo:    userRepo,
		articleRepo: articleRepo,
		policy:      policy,
		flags:       flags,
		notifier:    notifier,
		hashCost:    bcrypt.DefaultCost,
	}
}

// ConfirmPasswordEnabled reports whether registration asks for the password twice.
func (s *AccountService) ConfirmPasswordEnabled() bool {
	return s.flags.Enabled(featureflags.ConfirmPassword, 0)
}

func (s *AccountService) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// checkEmail validates and normalizes an address and reports whether
// another account (other than excludeID) already uses it.
func (s *AccountService) checkEmail(ctx context.Context, errs models.FormErrors, email string, excludeID uint) (string, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		errs.Add("email", err.Error())
		return email, nil
	}
	taken, err := s.userRepo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return "", err
	}
	if taken {
		errs.Add("email", emailTakenMessage)
	}
	return email, nil
}

func (s *AccountService) checkPassword(errs models.FormErrors, field, password string, attrs validation.UserAttributes) {
	for _, msg := range s.policy.Validate(password, attrs) {
		errs.Add(field, msg)
	}
	if len(password) > 72 {
		errs.Add(field, passwordTooLongMessage)
	}
}

// Register creates an account and returns it. Invalid input yields a *models.FormError.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "Register")
	defer func() { observability.EndSpan(span, err) }()

	errs := models.FormErrors{}
	email, err := s.checkEmail(ctx, errs, in.Email, 0)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateName(name); err != nil {
		errs.Add("name", err.Error())
	}

	passwordField := "password"
	if s.ConfirmPasswordEnabled() {
		passwordField = "password2"
		if in.Password == "" {
			errs.Add("password1", requiredField)
		}
		if in.PasswordConfirm == "" {
			errs.Add("password2", requiredField)
		} else if in.Password != "" && in.Password != in.PasswordConfirm {
			errs.Add("password2", passwordMismatchMessage)
		}
	} else if in.Password == "" {
		errs.Add("password", requiredField)
	}
	if in.Password != "" && !errs.Has(passwordField) {
		s.checkPassword(errs, passwordField, in.Password, validation.UserAttributes{Email: email, Name: name})
	}
	if errs.Any() {
		return nil, &models.FormError{Fields: errs}
	}

	hashed, err := s.hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user = &models.User{Email: email, Name: name, Password: hashed}
	if err = s.userRepo.Create(ctx, user); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
			// lost a race with a concurrent registration
			return nil, models.NewFormError("email", emailTakenMessage)
		}
		return nil, err
	}

	observability.RecordEvent(ctx, observability.EventUserRegistered, slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Authenticate checks credentials. Both unknown email and wrong password
// produce the same form error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(password))
		return nil, models.NewFormError("", loginFailedMessage)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewFormError("", loginFailedMessage)
	}

	observability.RecordEvent(ctx, observability.EventUserLoggedIn, slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

func (s *AccountService) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
	})
	return s.dummyHash
}

// UpdateSettings applies the settings form to userID. On validation failure
// the user with the submitted values is returned along with the error.
func (s *AccountService) UpdateSettings(ctx context.Context, userID uint, in SettingsInput) (user *models.User, passwordChanged bool, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "UpdateSettings")
	defer func() { observability.EndSpan(span, err) }()

	user, err = s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	errs := models.FormErrors{}
	email, err := s.checkEmail(ctx, errs, in.Email, userID)
	if err != nil {
		return nil, false, err
	}
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateName(name); err != nil {
		errs.Add("name", err.Error())
	}
	image := strings.TrimSpace(in.Image)
	if err := validation.ValidateURL(image); err != nil {
		errs.Add("image", err.Error())
	}
	if in.Password != "" {
		s.checkPassword(errs, "password", in.Password, validation.UserAttributes{Email: email, Name: name})
	}

	user.Email = email
	user.Name = name
	user.Bio = strings.TrimSpace(in.Bio)
	user.Image = nil
	if image != "" {
		user.Image = &image
	}
	if errs.Any() {
		return user, false, &models.FormError{Fields: errs}
	}

	if err = s.userRepo.Update(ctx, user); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
			return user, false, models.NewFormError("email", emailTakenMessage)
		}
		return nil, false, err
	}
	if in.Password != "" {
		hashed, err := s.hash(in.Password)
		if err != nil {
			return nil, false, models.NewInternalError(err)
		}
		if err := s.userRepo.SetPassword(ctx, userID, hashed); err != nil {
			return nil, false, err
		}
		passwordChanged = true
	}
	return user, passwordChanged, nil
}

// EmailInUse reports whether email belongs to an account other than excludeID.
func (s *AccountService) EmailInUse(ctx context.Context, email string, excludeID uint) (bool, error) {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	return s.userRepo.EmailExists(ctx, email, excludeID)
}

// CurrentUser loads the signed-in user, or nil for anonymous requests.
func (s *AccountService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, nil
	}
	return s.userRepo.GetByID(ctx, userID)
}

// Profile assembles the profile page of id as seen by viewerID.
func (s *AccountService) Profile(ctx context.Context, id, viewerID uint, favoritesOnly bool) (*ProfileView, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	articles, err := s.articleRepo.List(ctx, repository.ArticleFilter{
		ViewerID:      viewerID,
		AuthorID:      id,
		FavoritedOnly: favoritesOnly,
	})
	if err != nil {
		return nil, err
	}
	following, err := s.userRepo.IsFollowing(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	followers, err := s.userRepo.CountFollowers(ctx, id)
	if err != nil {
		return nil, err
	}
	user.NumFollowers = int(followers)

	return &ProfileView{
		User:         user,
		Articles:     articles,
		IsFollowing:  following,
		NumFollowers: followers,
		Favorites:    favoritesOnly,
	}, nil
}

// ToggleFollow makes viewerID follow (add=true) or unfollow id. Following
// yourself is a not-found.
func (s *AccountService) ToggleFollow(ctx context.Context, id, viewerID uint, add bool) (state *FollowState, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "ToggleFollow")
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.userRepo.GetFollowable(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	count, err := s.userRepo.SetFollow(ctx, user.ID, viewerID, add)
	if err != nil {
		return nil, err
	}
	user.NumFollowers = int(count)

	event := observability.EventFollowRemoved
	if add {
		event = observability.EventFollowAdded
		if err := s.notifier.PublishUser(ctx, user.ID, notifications.Event{
			Type:    notifications.EventUserFollowed,
			ActorID: viewerID,
		}); err != nil {
			slog.Default().WarnContext(ctx, "follow notification failed", slog.String("error", err.Error()))
		}
	}
	observability.RecordEvent(ctx, event, slog.Uint64("user_id", uint64(user.ID)))

	return &FollowState{User: user, IsFollowing: add, NumFollowers: count}, nil
}
