package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"conduit/web"

	"github.com/gofiber/template/html/v2"
)

// newViews parses the embedded templates. Template names are their paths
// under web/templates without the extension, e.g. "articles/_favorite_action".
func newViews() *html.Engine {
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	engine.AddFuncMap(template.FuncMap{
		"dict":      dict,
		"pluralize": pluralize,
		"date":      formatDate,
		"join":      strings.Join,
		"add":       func(a, b int) int { return a + b },
	})
	return engine
}

// dict builds a map from alternating keys and values so partials can be
// handed more than one value.
func dict(values ...interface{}) (map[string]interface{}, error) {
	if len(values)%2 != 0 {
		return nil, errors.New("dict expects an even number of arguments")
	}
	m := make(map[string]interface{}, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", values[i])
		}
		m[key] = values[i+1]
	}
	return m, nil
}

func pluralize(n interface{}, singular, plural string) string {
	var count int64
	switch v := n.(type) {
	case int:
		count = int64(v)
	case int64:
		count = v
	case uint:
		count = int64(v)
	}
	if count == 1 {
		return singular
	}
	return plural
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
