package httphandler

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/console"
)

// TemplateRenderer implements echo.Renderer for HTML template rendering.
type TemplateRenderer struct {
	templates *template.Template
	mu        sync.RWMutex
	logger    *slog.Logger
	devMode   bool
	fs        fs.FS
}

// TemplateRendererConfig holds configuration for the template renderer.
type TemplateRendererConfig struct {
	// FS holds a "templates" directory of .html files.
	FS fs.FS
	// Logger is the structured logger.
	Logger *slog.Logger
	// DevMode enables template reloading on each request.
	DevMode bool
}

// NewTemplateRenderer creates a new template renderer.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	r := &TemplateRenderer{
		logger:  cfg.Logger,
		devMode: cfg.DevMode,
		fs:      cfg.FS,
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// loadTemplates parses all templates from the filesystem.
func (r *TemplateRenderer) loadTemplates() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tmpl := template.New("").Funcs(TemplateFuncs())

	err := fs.WalkDir(r.fs, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}

		content, readErr := fs.ReadFile(r.fs, path)
		if readErr != nil {
			return readErr
		}

		name := path[len("templates/"):]
		if _, parseErr := tmpl.New(name).Parse(string(content)); parseErr != nil {
			r.logger.Error("failed to parse template",
				slog.String("path", path),
				slog.String("error", parseErr.Error()))
			return parseErr
		}

		r.logger.Debug("loaded template", slog.String("name", name))
		return nil
	})
	if err != nil {
		return err
	}

	r.templates = tmpl
	return nil
}

// Render implements echo.Renderer.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	if r.devMode {
		if err := r.loadTemplates(); err != nil {
			r.logger.Error("failed to reload templates", slog.String("error", err.Error()))
			return fmt.Errorf("failed to reload templates: %w", err)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(w, name, data)
}

// PageData represents common data passed to all page templates.
type PageData struct {
	Title string
	// Alerts are shown once, in order, as blocking browser alerts.
	Alerts []console.Alert
	Data   any
}

// SetupStaticRoutes registers routes for serving static files.
func SetupStaticRoutes(e *echo.Echo, staticFS fs.FS) error {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}

	e.StaticFS("/static", staticSub)

	return nil
}
