package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/config"
	"github.com/go-while/pugboard/internal/models"
)

//go:embed templates/*.html
var EmbeddedTemplatesFS embed.FS

// pages rendered inside base.html
var pageTemplates = []string{"board.html", "thread.html", "error.html"}

var templateFuncs = template.FuncMap{
	"text": models.RenderText,
	"date": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04:05")
	},
}

// loadTemplates parses base.html together with each page template once at startup
func loadTemplates() (map[string]*template.Template, error) {
	base, err := fs.ReadFile(EmbeddedTemplatesFS, "templates/base.html")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		page, err := fs.ReadFile(EmbeddedTemplatesFS, "templates/"+name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New("base.html").Funcs(templateFuncs).Parse(string(base))
		if err != nil {
			return nil, fmt.Errorf("base.html: %w", err)
		}
		if _, err := tmpl.New(name).Parse(string(page)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// GetPort returns the listening port from the config
func (s *WebServer) GetPort() int {
	return s.Config.ListenPort
}

// getBaseTemplateData creates a TemplateData struct with the common page fields
func (s *WebServer) getBaseTemplateData(c *gin.Context, title string) TemplateData {
	data := TemplateData{
		Title:       title,
		AppVersion:  config.AppVersion,
		CurrentTime: time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	if session := sessionFrom(c); session != nil {
		data.CSRFToken = session.CSRFToken
	}
	return data
}

// renderError renders an error page
func (s *WebServer) renderError(c *gin.Context, statusCode int, message string, errstring string) {
	errorData := ErrorPageData{
		TemplateData: s.getBaseTemplateData(c, "Error"),
		Error:        message,
		StatusCode:   statusCode,
	}
	if statusCode >= http.StatusInternalServerError {
		s.Logger.Error("[WEB]: request failed", zap.Int("status", statusCode), zap.String("message", message), zap.String("error", errstring))
	} else {
		s.Logger.Debug("[WEB]: request rejected", zap.Int("status", statusCode), zap.String("message", message), zap.String("error", errstring))
	}

	tmpl, ok := s.templates["error.html"]
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(statusCode)
	if !ok {
		c.String(statusCode, "Error: %s", message)
		return
	}
	if err := tmpl.ExecuteTemplate(c.Writer, "base.html", errorData); err != nil {
		s.Logger.Error("[WEB]: error rendering error template", zap.Error(err))
	}
}

// renderTemplate renders a page template inside base.html
func (s *WebServer) renderTemplate(c *gin.Context, statusCode int, templateName string, data interface{}) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		s.renderError(c, http.StatusInternalServerError, "Template error", "unknown template "+templateName)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(statusCode)
	if err := tmpl.ExecuteTemplate(c.Writer, "base.html", data); err != nil {
		// headers are already out, so only log it
		s.Logger.Error("[WEB]: error rendering template", zap.String("template", templateName), zap.Error(err))
	}
}
