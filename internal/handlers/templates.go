package handlers

import (
	"embed"
	"fmt"
	"html/template"

	"dermassist/client/internal/diagnosis"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"percent":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"tierColor": func(t diagnosis.Tier) string { return t.Color() },
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}
