// Package rest exposes the bloghub HTTP API on echo.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/auth"
	"github.com/dmitrijs2005/bloghub/internal/server/health"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds how long in-flight requests may run after ctx ends.
const shutdownTimeout = 10 * time.Second

type ArticleService interface {
	List(ctx context.Context, page, limit int, filter models.ArticleFilter) (*models.ArticlePage, error)
	Get(ctx context.Context, id string) (*models.Article, error)
	Create(ctx context.Context, in models.NewArticle, authorID string) (*models.Article, error)
	Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error)
	Delete(ctx context.Context, id, requesterID string) error
}

type CoverService interface {
	UploadURL(ctx context.Context, articleID, requesterID string) (*models.CoverUpload, error)
	DownloadURL(ctx context.Context, articleID string) (string, error)
}

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Server is the HTTP front end.
type Server struct {
	address  string
	echo     *echo.Echo
	logger   logging.Logger
	articles ArticleService
	covers   CoverService
	users    UserService
	health   HealthChecker
}

func NewServer(address string, l logging.Logger, articles ArticleService, covers CoverService, users UserService, hc HealthChecker) *Server {
	s := &Server{
		address:  address,
		echo:     echo.New(),
		logger:   l.With("module", "http_server"),
		articles: articles,
		covers:   covers,
		users:    users,
		health:   hc,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	e := s.echo
	e.Use(requestIDMiddleware(), accessLogMiddleware(s.logger))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/login", s.handleLogin)

	authed := requireAuth(s.users)

	e.GET("/articles", s.handleListArticles)
	e.POST("/articles", s.handleCreateArticle, authed)
	e.GET("/articles/:id", s.handleGetArticle)
	e.PATCH("/articles/:id", s.handleUpdateArticle, authed)
	e.DELETE("/articles/:id", s.handleDeleteArticle, authed)
	e.POST("/articles/:id/cover", s.handleCoverUpload, authed)
	e.GET("/articles/:id/cover", s.handleCoverDownload)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.echo.Listener = listen

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
