package models

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Footnote,
		extension.DefinitionList,
		extension.Strikethrough,
	),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(escapedHTMLRenderer{}, 100)),
	),
)

// escapedHTMLRenderer shows raw HTML from article content as text instead
// of passing it through or dropping it.
type escapedHTMLRenderer struct{}

func (r escapedHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
}

func (r escapedHTMLRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.HTMLBlock)
	if entering {
		_, _ = w.WriteString("<p>")
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			_, _ = w.Write(util.EscapeHTML(line.Value(source)))
		}
		return ast.WalkContinue, nil
	}
	if n.HasClosure() {
		_, _ = w.Write(util.EscapeHTML(n.ClosureLine.Value(source)))
	}
	_, _ = w.WriteString("</p>\n")
	return ast.WalkContinue, nil
}

func (r escapedHTMLRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		segment := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(segment.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

// Article is a piece of writing published by a user.
type Article struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null;size:120" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Content   string    `gorm:"type:text" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author"`
	Tags      []Tag     `gorm:"many2many:article_tags;constraint:OnDelete:CASCADE" json:"tags"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// NumFavorites is not persisted; computed at query time
	NumFavorites int `gorm:"->;-:migration" json:"num_favorites"`
	// IsFavorite indicates whether the current viewer favorited this article (computed)
	IsFavorite bool `gorm:"->;-:migration" json:"is_favorite"`
}

// ArticleFavorite links a user to an article they favorited.
type ArticleFavorite struct {
	ArticleID uint      `gorm:"primaryKey;autoIncrement:false" json:"article_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Article Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (ArticleFavorite) TableName() string {
	return "article_favorites"
}

// Slug is derived from the title and only decorates the detail URL.
func (a *Article) Slug() string {
	s := slug.Make(a.Title)
	if s == "" {
		return "article"
	}
	return s
}

// AbsoluteURL is the canonical detail page of the article.
func (a *Article) AbsoluteURL() string {
	return fmt.Sprintf("/article/%d/%s/", a.ID, a.Slug())
}

// Markdown renders the content to HTML. Raw HTML in the source is escaped
// and shown as text.
func (a *Article) Markdown() template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(a.Content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(a.Content))
	}
	return template.HTML(buf.String()) //nolint:gosec // raw HTML is escaped by escapedHTMLRenderer
}

// TagNames returns the names of the loaded tags in their stored order.
func (a *Article) TagNames() []string {
	names := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		names = append(names, t.Name)
	}
	return names
}

// TagString formats the tags for an edit form; names containing spaces are quoted.
func (a *Article) TagString() string {
	parts := make([]string, 0, len(a.Tags))
	for _, name := range a.TagNames() {
		if strings.ContainsAny(name, " ,") {
			name = `"` + name + `"`
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}

// IsAuthor reports whether userID wrote the article.
func (a *Article) IsAuthor(userID uint) bool {
	return userID != 0 && a.UserID == userID
}
