// Package web serves the upload form that turns broker invoice PDFs into a
// spreadsheet download.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/service"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second

	// multipartMemory is the part of an upload kept in memory; the rest
	// spills to temporary files.
	multipartMemory = 32 << 20
)

//go:embed templates/*.html
var templatesFS embed.FS

// Server is the HTTP front end of the extraction pipeline
type Server struct {
	config  *config.Config
	service *service.Service
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer creates the router and registers all routes.
func NewServer(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = multipartMemory
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		config:  cfg,
		service: svc,
		logger:  logger,
		router:  router,
	}
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/", s.index)
	s.router.GET("/health", s.health)
	s.router.POST("/extract", s.extract)

	api := s.router.Group("/api")
	{
		api.POST("/extract", s.apiExtract)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", srv.Addr, "ocr", s.service.OCREngine())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}
