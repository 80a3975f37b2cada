package repository

import (
	"context"
	"errors"
	"log/slog"

	"conduit/internal/cache"
	"conduit/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string, excludeID uint) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetPassword(ctx context.Context, id uint, hash string) error
	GetFollowable(ctx context.Context, id, viewerID uint) (*models.User, error)
	SetFollow(ctx context.Context, userID, followerID uint, on bool) (int64, error)
	IsFollowing(ctx context.Context, userID, followerID uint) (bool, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID is cache-aside. The cached copy never carries the password hash.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// EmailExists reports whether another user (not excludeID) has the address.
func (r *userRepository) EmailExists(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	q := readDB(r.db).WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User with this Email already exists.")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update writes the profile columns. The password is only changed by SetPassword.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"email": user.Email,
		"name":  user.Name,
		"bio":   user.Bio,
		"image": user.Image,
	}).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User with this Email already exists.")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	r.invalidateAuthoredArticles(ctx, user.ID)
	return nil
}

// invalidateAuthoredArticles drops cached articles, which embed their author.
func (r *userRepository) invalidateAuthoredArticles(ctx context.Context, userID uint) {
	if !cache.Enabled() {
		return
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Article{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		slog.Default().WarnContext(ctx, "article cache invalidation failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		return
	}
	cache.InvalidateArticles(ctx, ids...)
}

func (r *userRepository) SetPassword(ctx context.Context, id uint, hash string) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// GetFollowable finds the user only when it is not the viewer.
func (r *userRepository) GetFollowable(ctx context.Context, id, viewerID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id <> ?", viewerID).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// SetFollow makes followerID follow (or stop following) userID and returns
// the resulting follower count. Both directions are idempotent.
func (r *userRepository) SetFollow(ctx context.Context, userID, followerID uint, on bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if on {
			follow := models.UserFollow{UserID: userID, FollowerID: followerID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("User", "Follower").Create(&follow).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("user_id = ? AND follower_id = ?", userID, followerID).Delete(&models.UserFollow{}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.UserFollow{}).Where("user_id = ?", userID).Count(&count).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *userRepository) IsFollowing(ctx context.Context, userID, followerID uint) (bool, error) {
	if followerID == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserFollow{}).
		Where("user_id = ? AND follower_id = ?", userID, followerID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.UserFollow{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
