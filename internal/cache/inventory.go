package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix    = "user:%d"
	ArticleKeyPrefix = "article:%d"
	TagCloudKey      = "tags:all"
	RevokedKeyPrefix = "session:revoked:%s"
)

const (
	UserTTL     = 5 * time.Minute
	ArticleTTL  = 2 * time.Minute
	TagCloudTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// ArticleKey caches the anonymous view of an article.
func ArticleKey(articleID uint) string {
	return fmt.Sprintf(ArticleKeyPrefix, articleID)
}

func RevokedKey(jti string) string {
	return fmt.Sprintf(RevokedKeyPrefix, jti)
}

// Invalidate deletes keys; failures only cost a stale read until TTL.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateArticle drops the cached article and the tag cloud it may have changed.
func InvalidateArticle(ctx context.Context, articleID uint) {
	Invalidate(ctx, ArticleKey(articleID), TagCloudKey)
}

// InvalidateArticles drops the cached views of the given articles.
func InvalidateArticles(ctx context.Context, articleIDs ...uint) {
	keys := make([]string, 0, len(articleIDs))
	for _, id := range articleIDs {
		keys = append(keys, ArticleKey(id))
	}
	Invalidate(ctx, keys...)
}

// Enabled reports whether a Redis client is configured.
func Enabled() bool {
	return client != nil
}
