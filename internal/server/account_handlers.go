package server

import (
	"conduit/internal/htmx"
	"conduit/internal/middleware"
	"conduit/internal/models"
	"conduit/internal/service"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) registerData(in service.RegisterInput) fiber.Map {
	// passwords are never echoed back
	in.Password, in.PasswordConfirm = "", ""
	return fiber.Map{
		"Form":            in,
		"ConfirmPassword": s.accountService.ConfirmPasswordEnabled(),
	}
}

// RegisterForm renders the sign-up form.
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return pageOrPartial(c, "registration/register", "registration/_register", s.registerData(service.RegisterInput{}))
}

// Register creates the account and signs the new user in.
func (s *Server) Register(c *fiber.Ctx) error {
	in := service.RegisterInput{
		Email:    c.FormValue("email"),
		Name:     c.FormValue("name"),
		Password: c.FormValue("password"),
	}
	if s.accountService.ConfirmPasswordEnabled() {
		in.Password = c.FormValue("password1")
		in.PasswordConfirm = c.FormValue("password2")
	}

	user, err := s.accountService.Register(c.UserContext(), in)
	if err != nil {
		return formFailure(c, err, "registration/register", "registration/_register", s.registerData(in))
	}
	if err := s.sessions.SetCookie(c, user.ID); err != nil {
		return err
	}
	return htmx.Redirect(c, "/")
}

// LoginForm renders the sign-in form.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return page(c, "registration/login", fiber.Map{
		"Next": safeNext(c.Query("next")),
	})
}

// Login authenticates the credentials and sends the user to next.
func (s *Server) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	next := c.FormValue("next")
	if next == "" {
		next = c.Query("next")
	}
	next = safeNext(next)

	user, err := s.accountService.Authenticate(c.UserContext(), email, c.FormValue("password"))
	if err != nil {
		return formFailure(c, err, "registration/login", "registration/login", fiber.Map{
			"Email": email,
			"Next":  next,
		})
	}
	if err := s.sessions.SetCookie(c, user.ID); err != nil {
		return err
	}
	return htmx.Redirect(c, next)
}

// Logout ends the session for GET and POST alike.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.sessions.End(c)
	c.Locals("userID", uint(0))
	return htmx.Redirect(c, "/")
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("CurrentUser").(*models.User)
	return user
}

// SettingsForm renders the current user's settings.
func (s *Server) SettingsForm(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return fiber.ErrNotFound
	}
	return pageOrPartial(c, "accounts/settings", "accounts/_settings", fiber.Map{
		"Form": service.SettingsInput{
			Email: user.Email,
			Name:  user.Name,
			Bio:   user.Bio,
			Image: user.ImageURL(),
		},
	})
}

// Settings saves the settings form. A password change replaces the session
// so other sessions holding the old token stop working.
func (s *Server) Settings(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	in := service.SettingsInput{
		Email:    c.FormValue("email"),
		Name:     c.FormValue("name"),
		Bio:      c.FormValue("bio"),
		Image:    c.FormValue("image"),
		Password: c.FormValue("password"),
	}

	user, passwordChanged, err := s.accountService.UpdateSettings(c.UserContext(), userID, in)
	if err != nil {
		in.Password = ""
		return formFailure(c, err, "accounts/settings", "accounts/_settings", fiber.Map{"Form": in})
	}
	if passwordChanged {
		s.sessions.End(c)
		if err := s.sessions.SetCookie(c, user.ID); err != nil {
			return err
		}
	}
	return htmx.Redirect(c, user.AbsoluteURL())
}

// CheckEmail reports whether ?email= belongs to another account.
func (s *Server) CheckEmail(c *fiber.Ctx) error {
	inUse, err := s.accountService.EmailInUse(c.UserContext(), c.Query("email"), middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	return partial(c, "accounts/_check_email", fiber.Map{"InUse": inUse})
}

// Profile shows a user and their articles; ?favorites keeps only articles
// with at least one favorite. HTMX requests get just the article list.
func (s *Server) Profile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	view, err := s.accountService.Profile(c.UserContext(), id, middleware.CurrentUserID(c), hasQuery(c, "favorites"))
	if err != nil {
		return err
	}
	return pageOrPartial(c, "accounts/profile", "articles/_articles", fiber.Map{
		"Profile":  view,
		"Articles": view.Articles,
	})
}

// Follow follows (POST) or unfollows (DELETE) a user and renders the
// refreshed follow control.
func (s *Server) Follow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	state, err := s.accountService.ToggleFollow(c.UserContext(), id, middleware.CurrentUserID(c), c.Method() == fiber.MethodPost)
	if err != nil {
		return err
	}
	return partial(c, "accounts/_follow_action", fiber.Map{
		"User":         state.User,
		"IsFollowing":  state.IsFollowing,
		"NumFollowers": state.NumFollowers,
	})
}
