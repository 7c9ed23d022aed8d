package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/views"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageList   = "list.html"
	pageDetail = "detail.html"
	pageCreate = "create.html"
)

// page is the data every template renders.
type page struct {
	Title   string
	Message string
	Warning string

	List    *views.ListSnapshot
	Empty   bool
	Detail  *views.DetailSnapshot
	Confirm bool
	Create  *views.CreateSnapshot
}

// parseTemplates builds one template set per page, each sharing the layout.
func parseTemplates(funcs template.FuncMap) (map[string]*template.Template, error) {
	out := map[string]*template.Template{}
	for _, name := range []string{pageList, pageDetail, pageCreate} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// render buffers the page before the status is written.
func (h *RoomHandler) render(w http.ResponseWriter, status int, name string, p page) {
	var buf bytes.Buffer
	if err := h.templates[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		h.logger.Error("Template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
