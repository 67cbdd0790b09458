package web

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/mpapenbr/portion-tracker-go/pkg/model"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"seq": func(n int) []int {
			s := make([]int, n)
			for i := range s {
				s[i] = i + 1
			}
			return s
		},
		"upper": strings.ToUpper,
		"color": func(l model.Level) string { return l.Color() },
		"safeCSS": func(s string) template.CSS {
			return template.CSS(s)
		},
	}
	return template.New("base").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
}

func (h *Handler) render(w io.Writer, name string, data any) error {
	return h.tmpl.ExecuteTemplate(w, name, data)
}
