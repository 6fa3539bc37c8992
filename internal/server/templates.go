package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames lists every page template rendered with the shared layout.
var pageNames = []string{
	"feed", "feed_items", "compose", "profile", "messages", "thread", "login",
}

var templateFuncs = template.FuncMap{
	"timefmt": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006 15:04")
	},
}

// newTemplateSet parses one template set per page so every page can define a
// "content" block against the shared layout.
func newTemplateSet() (map[string]*template.Template, error) {
	sets := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		files := []string{"templates/layout.html", "templates/" + name + ".html"}
		if name == "feed" {
			// The feed page embeds the same item fragment the endless-scroll
			// endpoint serves on its own.
			files = append(files, "templates/feed_items.html")
		}
		parsed, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		sets[name] = parsed
	}
	return sets, nil
}

func (h *httpHandler) render(w io.Writer, page string, data any) error {
	tmpl, ok := h.templates[page]
	if !ok {
		return fmt.Errorf("unknown template %s", page)
	}
	root := "layout.html"
	if page == "feed_items" {
		root = "items"
	}
	return tmpl.ExecuteTemplate(w, root, data)
}
