package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next     string
		expected string
	}{
		{"", "/"},
		{"/new/", "/new/"},
		{"/article/1/slug/?x=1", "/article/1/slug/?x=1"},
		{"//evil.example.com/", "/"},
		{"/\\evil.example.com", "/"},
		{"https://evil.example.com/", "/"},
		{"relative/path", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.expected, safeNext(tt.next))
		})
	}
}

func TestHasQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if hasQuery(c, "own") {
			return c.SendString("yes")
		}
		return c.SendString("no")
	})

	for target, expected := range map[string]string{"/?own": "yes", "/?own=1": "yes", "/?tag=own": "no", "/": "no"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		body := make([]byte, 3)
		n, _ := resp.Body.Read(body)
		assert.Equal(t, expected, string(body[:n]), target)
	}
}

func TestDict(t *testing.T) {
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "two"}, m)

	_, err = dict("odd")
	assert.Error(t, err)

	_, err = dict(1, 2)
	assert.Error(t, err)
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "follower", pluralize(int64(1), "follower", "followers"))
	assert.Equal(t, "followers", pluralize(int64(0), "follower", "followers"))
	assert.Equal(t, "followers", pluralize(2, "follower", "followers"))
}
