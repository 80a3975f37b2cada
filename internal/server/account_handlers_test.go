package server

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"conduit/internal/middleware"
	"conduit/internal/models"
	"conduit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "plum-Orchard-47!"

func TestRegister(t *testing.T) {
	env := newTestEnv(t, "")
	testutil.CreateUser(t, env.db, "taken@example.com")

	t.Run("form renders single password field", func(t *testing.T) {
		resp, body := env.do(request{method: http.MethodGet, target: "/accounts/register/"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `name="password"`)
		assert.NotContains(t, body, `name="password2"`)
	})

	t.Run("duplicate email", func(t *testing.T) {
		form := url.Values{"email": {"Taken@Example.com"}, "name": {"Someone"}, "password": {strongPassword}}
		resp, body := env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "already exists")
		assert.NotContains(t, body, strongPassword)
	})

	t.Run("weak password", func(t *testing.T) {
		form := url.Values{"email": {"weak@example.com"}, "name": {"Weak"}, "password": {"12345678"}}
		resp, body := env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `class="error"`)
		assert.Empty(t, resp.Header.Get("HX-Redirect"))
	})

	t.Run("success starts a session", func(t *testing.T) {
		form := url.Values{"email": {"new@example.com"}, "name": {"Newcomer"}, "password": {strongPassword}}
		resp, _ := env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("HX-Redirect"))
		assert.Contains(t, resp.Header.Get("Set-Cookie"), middleware.SessionCookie+"=")

		var user models.User
		require.NoError(t, env.db.Where("email = ?", "new@example.com").First(&user).Error)
		assert.NotEqual(t, strongPassword, user.Password)
	})
}

func TestRegisterWithConfirmation(t *testing.T) {
	env := newTestEnv(t, "confirm_password=true")

	_, body := env.do(request{method: http.MethodGet, target: "/accounts/register/"})
	assert.Contains(t, body, `name="password1"`)
	assert.Contains(t, body, `name="password2"`)

	form := url.Values{
		"email":     {"pair@example.com"},
		"name":      {"Pair"},
		"password1": {strongPassword},
		"password2": {strongPassword + "x"},
	}
	resp, body := env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "The two password fields didn’t match.")

	form.Set("password2", strongPassword)
	resp, _ = env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
	assert.Equal(t, "/", resp.Header.Get("HX-Redirect"))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "")
	form := url.Values{"email": {"reader@example.com"}, "name": {"Reader"}, "password": {strongPassword}}
	resp, _ := env.do(request{method: http.MethodPost, target: "/accounts/register/", form: form, htmx: true})
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))

	tests := []struct {
		name             string
		form             url.Values
		expectedStatus   int
		expectedLocation string
		expectedBody     string
	}{
		{
			name:           "Wrong Password",
			form:           url.Values{"email": {"reader@example.com"}, "password": {"wrong"}},
			expectedStatus: http.StatusOK,
			expectedBody:   "Please enter a correct email address and password.",
		},
		{
			name:           "Unknown Email",
			form:           url.Values{"email": {"nobody@example.com"}, "password": {strongPassword}},
			expectedStatus: http.StatusOK,
			expectedBody:   "Please enter a correct email address and password.",
		},
		{
			name:             "Success Default Next",
			form:             url.Values{"email": {"reader@example.com"}, "password": {strongPassword}},
			expectedStatus:   http.StatusFound,
			expectedLocation: "/",
		},
		{
			name:             "Success With Next",
			form:             url.Values{"email": {"Reader@Example.com"}, "password": {strongPassword}, "next": {"/new/"}},
			expectedStatus:   http.StatusFound,
			expectedLocation: "/new/",
		},
		{
			name:             "Offsite Next Ignored",
			form:             url.Values{"email": {"reader@example.com"}, "password": {strongPassword}, "next": {"//evil.example.com/"}},
			expectedStatus:   http.StatusFound,
			expectedLocation: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(request{method: http.MethodPost, target: "/accounts/login/", form: tt.form})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedLocation != "" {
				assert.Equal(t, tt.expectedLocation, resp.Header.Get("Location"))
				assert.Contains(t, resp.Header.Get("Set-Cookie"), middleware.SessionCookie+"=")
			}
			if tt.expectedBody != "" {
				assert.Contains(t, body, tt.expectedBody)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, "")
	user := testutil.CreateUser(t, env.db, "alice@example.com")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			resp, _ := env.do(request{method: method, target: "/accounts/logout/", user: user})
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/", resp.Header.Get("Location"))
			assert.Contains(t, resp.Header.Get("Set-Cookie"), middleware.SessionCookie+"=;")
		})
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, "")
	alice := testutil.CreateUser(t, env.db, "alice@example.com")
	testutil.CreateUser(t, env.db, "bob@example.com")

	t.Run("login required", func(t *testing.T) {
		resp, _ := env.do(request{method: http.MethodGet, target: "/accounts/settings/"})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
	})

	t.Run("form is prefilled", func(t *testing.T) {
		_, body := env.do(request{method: http.MethodGet, target: "/accounts/settings/", user: alice})
		assert.Contains(t, body, `value="alice@example.com"`)
	})

	t.Run("email of another account", func(t *testing.T) {
		form := url.Values{"email": {"bob@example.com"}, "name": {"Alice"}}
		resp, body := env.do(request{method: http.MethodPost, target: "/accounts/settings/", form: form, user: alice, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "already exists")
	})

	t.Run("valid update", func(t *testing.T) {
		form := url.Values{"email": {"alice@example.com"}, "name": {"Alice Liddell"}, "bio": {"curious"}}
		resp, _ := env.do(request{method: http.MethodPost, target: "/accounts/settings/", form: form, user: alice, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, alice.AbsoluteURL(), resp.Header.Get("HX-Redirect"))

		var stored models.User
		require.NoError(t, env.db.First(&stored, alice.ID).Error)
		assert.Equal(t, "Alice Liddell", stored.Name)
		assert.Equal(t, "curious", stored.Bio)
		assert.Equal(t, "!", stored.Password)
	})

	t.Run("password change renews the session", func(t *testing.T) {
		form := url.Values{"email": {"alice@example.com"}, "name": {"Alice"}, "password": {strongPassword}}
		resp, _ := env.do(request{method: http.MethodPost, target: "/accounts/settings/", form: form, user: alice, htmx: true})
		assert.Equal(t, alice.AbsoluteURL(), resp.Header.Get("HX-Redirect"))

		var stored models.User
		require.NoError(t, env.db.First(&stored, alice.ID).Error)
		assert.NotEqual(t, "!", stored.Password)

		found := false
		for _, cookie := range resp.Cookies() {
			if cookie.Name == middleware.SessionCookie && cookie.Value != "" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestCheckEmail(t *testing.T) {
	env := newTestEnv(t, "")
	alice := testutil.CreateUser(t, env.db, "alice@example.com")

	_, body := env.do(request{method: http.MethodGet, target: "/accounts/check-email/?email=ALICE@example.com", htmx: true})
	assert.Contains(t, body, "This email is in use")

	_, body = env.do(request{method: http.MethodGet, target: "/accounts/check-email/?email=free@example.com", htmx: true})
	assert.NotContains(t, body, "This email is in use")

	_, body = env.do(request{method: http.MethodGet, target: "/accounts/check-email/?email=alice@example.com", user: alice, htmx: true})
	assert.NotContains(t, body, "This email is in use")
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, "")
	alice := testutil.CreateUser(t, env.db, "alice@example.com")
	bob := testutil.CreateUser(t, env.db, "bob@example.com")
	liked := testutil.CreateArticle(t, env.db, bob, "Popular Post")
	testutil.CreateArticle(t, env.db, bob, "Quiet Post")
	require.NoError(t, env.db.Create(&models.ArticleFavorite{ArticleID: liked.ID, UserID: alice.ID}).Error)

	t.Run("all articles", func(t *testing.T) {
		resp, body := env.do(request{method: http.MethodGet, target: bob.AbsoluteURL(), user: alice})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Popular Post")
		assert.Contains(t, body, "Quiet Post")
		assert.Contains(t, body, "Follow bob")
	})

	t.Run("favorites partial", func(t *testing.T) {
		_, body := env.do(request{method: http.MethodGet, target: bob.AbsoluteURL() + "?favorites", htmx: true})
		assert.NotContains(t, body, "<html")
		assert.Contains(t, body, "Popular Post")
		assert.NotContains(t, body, "Quiet Post")
	})

	t.Run("missing user", func(t *testing.T) {
		resp, _ := env.do(request{method: http.MethodGet, target: "/accounts/profile/999/"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestFollow(t *testing.T) {
	env := newTestEnv(t, "")
	alice := testutil.CreateUser(t, env.db, "alice@example.com")
	bob := testutil.CreateUser(t, env.db, "bob@example.com")
	target := fmt.Sprintf("/accounts/profile/follow/%d/", bob.ID)

	t.Run("self follow is not found", func(t *testing.T) {
		resp, _ := env.do(request{method: http.MethodPost, target: fmt.Sprintf("/accounts/profile/follow/%d/", alice.ID), user: alice, htmx: true})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("follow", func(t *testing.T) {
		resp, body := env.do(request{method: http.MethodPost, target: target, user: alice, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Unfollow bob")
		assert.Contains(t, body, "1 follower")
	})

	t.Run("unfollow", func(t *testing.T) {
		resp, body := env.do(request{method: http.MethodDelete, target: target, user: alice, htmx: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Follow bob")
		assert.Contains(t, body, "0 followers")
	})
}
