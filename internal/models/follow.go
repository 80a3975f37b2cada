package models

import (
	"time"
)

// UserFollow records that FollowerID follows UserID.
type UserFollow struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"follower_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relationships
	User     User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Follower User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (UserFollow) TableName() string {
	return "user_follows"
}
