package server

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/view.html
var templateFS embed.FS

var viewTemplate = template.Must(template.ParseFS(templateFS, "templates/view.html"))

type viewPage struct {
	URL   string
	Error string
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	page := viewPage{}
	status := http.StatusOK
	u, err := s.codec.Decode(r.PathValue("token"))
	if err != nil {
		page.Error = msgInvalidLink
		status = http.StatusBadRequest
	} else {
		page.URL = u
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := viewTemplate.Execute(w, page); err != nil {
		s.logger.Warn("failed to render view page", zap.Error(err))
	}
}
