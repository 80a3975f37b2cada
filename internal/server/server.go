// Package server contains the HTTP handlers and page rendering for the application.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"conduit/internal/cache"
	"conduit/internal/config"
	"conduit/internal/featureflags"
	"conduit/internal/middleware"
	"conduit/internal/models"
	"conduit/internal/notifications"
	"conduit/internal/repository"
	"conduit/internal/service"
	"conduit/internal/validation"
	"conduit/web"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const baseLayout = "layouts/base"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	sessions       *middleware.SessionManager
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager
	articleService *service.ArticleService
	commentService *service.CommentService
	accountService *service.AccountService
}

// NewServerWithDeps creates a Server over an established database and an
// optional Redis client. Without Redis, caching, revocation and
// notifications are disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	policy, err := validation.PolicyByName(cfg.PasswordPolicy)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	tagRepo := repository.NewTagRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("conduit"),
		sessions:       middleware.NewSessionManager(cfg.SessionSecret, ttl, cache.NewSessionRevocations(), cfg.IsProduction()),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	server.articleService = service.NewArticleService(articleRepo, tagRepo, server.notifier)
	server.commentService = service.NewCommentService(commentRepo, articleRepo, server.notifier)
	server.accountService = service.NewAccountService(userRepo, articleRepo, policy, server.featureFlags, server.notifier)

	return server, nil
}

// App builds the Fiber application with views, middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:           "Conduit",
		Views:             newViews(),
		PassLocalsToViews: true,
		ErrorHandler:      s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. The CSP is left to the reverse proxy since pages load htmx from a CDN.
	app.Use(helmet.New(helmet.Config{ContentSecurityPolicy: ""}))

	// Session cookie, then the user record for templates.
	app.Use(s.sessions.LoadSession())
	app.Use(s.loadCurrentUser)

	// Context Middleware to propagate Request ID, User ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Global rate limiting per IP
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/health/") || strings.HasPrefix(c.Path(), "/static/")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))
}

// SetupRoutes configures all routes for the application. Routes with a
// literal segment are registered before parameterised siblings.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(web.Static()),
		MaxAge: 3600,
	}))

	login := middleware.LoginRequired

	// Articles
	app.Get("/", s.Home)
	app.Get("/new/", login, s.NewArticle)
	app.Post("/new/", login, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_article"), s.CreateArticle)
	app.Get("/article/edit/:id<int>/", login, s.EditArticleForm)
	app.Post("/article/edit/:id<int>/", login, s.EditArticle)
	app.Delete("/article/delete/:id<int>/", login, s.DeleteArticle)
	app.Post("/article/favorite/:id<int>/", login, s.Favorite)
	app.Delete("/article/favorite/:id<int>/", login, s.Favorite)
	app.Get("/article/:id<int>/:slug/", s.ArticleDetail)
	app.Get("/tags-autocomplete/", s.TagsAutocomplete)

	// Comments
	app.Post("/comments/add/:article_id<int>/", login, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.AddComment)
	app.Get("/comments/edit/:id<int>/", login, s.EditCommentForm)
	app.Post("/comments/edit/:id<int>/", login, s.EditComment)
	app.Delete("/comments/delete/:id<int>/", login, s.DeleteComment)

	// Accounts
	accounts := app.Group("/accounts")
	accounts.Get("/register/", s.RegisterForm)
	accounts.Post("/register/", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	accounts.Get("/login/", s.LoginForm)
	accounts.Post("/login/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	accounts.Get("/logout/", s.Logout)
	accounts.Post("/logout/", s.Logout)
	accounts.Get("/settings/", login, s.SettingsForm)
	accounts.Post("/settings/", login, s.Settings)
	accounts.Get("/check-email/", s.CheckEmail)
	accounts.Post("/profile/follow/:id<int>/", login, s.Follow)
	accounts.Delete("/profile/follow/:id<int>/", login, s.Follow)
	accounts.Get("/profile/:id<int>/", s.Profile)
}

// loadCurrentUser exposes the signed-in user to handlers and templates as
// Locals("CurrentUser"). A session for a deleted account is dropped.
func (s *Server) loadCurrentUser(c *fiber.Ctx) error {
	if userID := middleware.CurrentUserID(c); userID != 0 {
		user, err := s.accountService.CurrentUser(c.UserContext(), userID)
		switch {
		case models.IsNotFound(err):
			s.sessions.End(c)
			c.Locals("userID", uint(0))
		case err != nil:
			return err
		default:
			c.Locals("CurrentUser", user)
		}
	}
	c.Locals("Flags", s.featureFlags.Snapshot(middleware.CurrentUserID(c)))
	return c.Next()
}

// errorHandler renders the error page for anything a handler returns.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
	}
	if rerr := models.RespondWithError(c, status, err); rerr != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "error page render failed", slog.String("error", rerr.Error()))
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(status).SendString(http.StatusText(status))
	}
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so a
// missing client does not fail readiness but an unreachable one does.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.notifier.StartPatternSubscriber(s.shutdownCtx, func(recipientID uint, ev notifications.Event) {
		middleware.Logger.Debug("notification published",
			slog.Uint64("recipient_id", uint64(recipientID)),
			slog.String("type", ev.Type),
			slog.Uint64("actor_id", uint64(ev.ActorID)))
	}); err != nil {
		middleware.Logger.Warn("notification subscriber not started", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
