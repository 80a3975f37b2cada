package database

import "conduit/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Join models come after the tables they reference.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Tag{},
		&models.Article{},
		&models.Comment{},
		&models.ArticleFavorite{},
		&models.UserFollow{},
	}
}
