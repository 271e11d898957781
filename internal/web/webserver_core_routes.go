// Package web provides the HTTP server and web interface for pugboard
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/config"
	"github.com/go-while/pugboard/internal/models"
)

// BoardStore is the persistence the web server needs. It is implemented by
// the sqlite store in internal/database and the postgres store in internal/pgstore.
type BoardStore interface {
	CreatePost(ctx context.Context, name, body string) (*models.Post, error)
	CreateReply(ctx context.Context, postID int64, name, body string) (*models.Reply, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListBoardPosts(ctx context.Context, limit, offset int) ([]*models.BoardPost, error)
	CountPosts(ctx context.Context) (int, error)
	GetReplies(ctx context.Context, postID int64) ([]*models.Reply, error)

	CreateSession(ctx context.Context) (*models.Session, error)
	GetSession(ctx context.Context, id string, maxIdle time.Duration) (*models.Session, error)
	TouchSession(ctx context.Context, id string) error
	CleanupExpiredSessions(ctx context.Context, maxIdle time.Duration) (int64, error)
}

// WebServer represents the web server
type WebServer struct {
	DB        BoardStore
	Router    *gin.Engine
	Config    *config.WebConfig
	Board     *config.BoardConfig
	Sanitizer models.Sanitizer
	Logger    *zap.Logger
	StartTime time.Time

	metrics    *boardMetrics
	templates  map[string]*template.Template
	sessionKey []byte
	httpServer *http.Server
	stopChan   chan struct{}
}

// TemplateData represents common template data
type TemplateData struct {
	Title       string
	AppVersion  string
	CurrentTime string
	CSRFToken   string
}

// FormData is the submission form state, refilled when a submission is rejected
type FormData struct {
	Name  string
	Body  string
	Error string
}

// BoardPageData represents data for the board listing
type BoardPageData struct {
	TemplateData
	Posts      []*models.BoardPost
	Pagination *models.PaginationInfo
	Form       FormData
}

// ThreadPageData represents data for the reply view of one post
type ThreadPageData struct {
	TemplateData
	Thread *models.Thread
	Form   FormData
}

// ErrorPageData represents data for error pages
type ErrorPageData struct {
	TemplateData
	Error      string
	StatusCode int
}

// NewServer creates a new web server instance
func NewServer(db BoardStore, cfg *config.MainConfig, logger *zap.Logger) (*WebServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionKey, err := loadSessionKey(cfg.Web.SessionSecret)
	if err != nil {
		return nil, err
	}
	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	router := gin.New()

	// Configure Gin to trust reverse proxy headers
	// Set trusted proxies for common reverse proxy setups (nginx, etc.)
	if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; form-action 'self'; frame-ancestors 'none'",
	}

	// Only add SSL-specific headers if SSL is enabled on the application itself
	// (not when running behind a reverse proxy like nginx with SSL)
	if cfg.Web.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}

	server := &WebServer{
		DB:     db,
		Router: router,
		Config: &cfg.Web,
		Board:  &cfg.Board,
		Sanitizer: models.Sanitizer{
			DefaultName:   cfg.Board.DefaultName,
			MaxNameLength: cfg.Board.MaxNameLength,
			MaxBodyLength: cfg.Board.MaxBodyLength,
		},
		Logger:     logger,
		metrics:    newBoardMetrics(),
		templates:  templates,
		sessionKey: sessionKey,
		stopChan:   make(chan struct{}),
	}

	router.Use(server.RequestLogger(), gin.CustomRecovery(server.recoverPanic))
	router.Use(secure.New(secureConfig))

	server.setupRoutes()
	return server, nil
}

// loadSessionKey decodes the configured secret or makes a random one
func loadSessionKey(secret string) ([]byte, error) {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		return key, nil
	}
	key, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("session secret is not hex: %w", err)
	}
	if len(key) < 16 || len(key) > 64 {
		return nil, fmt.Errorf("session secret must be 16 to 64 bytes, got %d", len(key))
	}
	return key, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	s.Router.GET("/static/*filepath", EmbeddedStaticHandler("/static"))
	s.Router.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.Router.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, "User-agent: *\nDisallow: /?mode=reply\n")
	})
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	if s.Config.Metrics {
		s.Router.GET("/metrics", gin.WrapH(s.metrics.handler()))
	}

	board := s.Router.Group("/")
	board.Use(s.SessionMiddleware())
	{
		board.GET("/", s.boardIndex)
		board.POST("/", s.boardSubmit)
	}

	s.Router.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Page not found", c.Request.URL.Path)
	})
}

// Handler returns the root http.Handler, gzip compressed when enabled
func (s *WebServer) Handler() http.Handler {
	if s.Config.Gzip {
		return gzhttp.GzipHandler(s.Router)
	}
	return s.Router
}

// Start starts the session cleanup task and serves until Shutdown
func (s *WebServer) Start() error {
	addr := ":" + strconv.Itoa(s.Config.ListenPort)
	s.StartTime = time.Now()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.StartSessionCleanup()

	var err error
	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		s.Logger.Info("[WEB]: Starting HTTPS server", zap.String("addr", addr))
		err = s.httpServer.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	} else {
		s.Logger.Info("[WEB]: Starting HTTP server", zap.String("addr", addr))
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops background tasks and gracefully stops the HTTP server
func (s *WebServer) Shutdown(ctx context.Context) error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
