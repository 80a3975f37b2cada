package observability

import (
	"context"
	"log/slog"
)

// Domain event names.
const (
	EventUserRegistered  = "user_registered"
	EventUserLoggedIn    = "user_logged_in"
	EventArticleCreated  = "article_created"
	EventArticleUpdated  = "article_updated"
	EventArticleDeleted  = "article_deleted"
	EventCommentAdded    = "comment_added"
	EventCommentDeleted  = "comment_deleted"
	EventFavoriteAdded   = "favorite_added"
	EventFavoriteRemoved = "favorite_removed"
	EventFollowAdded     = "follow_added"
	EventFollowRemoved   = "follow_removed"
)

// RecordEvent counts the event and logs it through the default logger,
// which carries the request context attributes.
func RecordEvent(ctx context.Context, event string, attrs ...slog.Attr) {
	DomainEvents.WithLabelValues(event).Inc()
	AddTraceAttributesToContext(ctx, eventAttribute(event))
	slog.Default().LogAttrs(ctx, slog.LevelInfo, "domain event", append([]slog.Attr{slog.String("event", event)}, attrs...)...)
}
