// Package server exposes the fact-checker as a web UI and JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// LanguageCookie holds the visitor's selected language
const LanguageCookie = "factcheck_lang"

// Checker runs fact-checks
type Checker interface {
	Check(ctx context.Context, req pipeline.CheckRequest) (*model.Report, error)
	MaxWords() int
}

// ImageAnalyzer describes uploaded images
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte, filename string) (*model.ImageAnalysis, error)
	MaxBytes() int64
}

// Server is the HTTP front end
type Server struct {
	cfg      model.ServerConfig
	engine   *gin.Engine
	checker  Checker
	analyzer ImageAnalyzer
	metrics  *metrics.Collectors
	gatherer prometheus.Gatherer
}

// New builds the router. analyzer may be nil, which disables the image tab;
// gatherer may be nil, which disables /metrics.
func New(cfg model.ServerConfig, checker Checker, analyzer ImageAnalyzer, m *metrics.Collectors, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		checker:  checker,
		analyzer: analyzer,
		metrics:  m,
		gatherer: gatherer,
	}

	g := gin.New()
	g.Use(requestLogger(m), gin.CustomRecovery(recoverWithLog))
	g.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))
	s.engine = g
	s.attachRoutes(g)
	return s
}

func (s *Server) attachRoutes(r *gin.Engine) {
	r.GET("/", s.index)
	r.POST("/language", s.setLanguage)
	r.POST("/check", s.checkForm)
	r.POST("/image", s.imageForm)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))
	{
		api.POST("/check", s.checkJSON)
		api.POST("/image", s.imageJSON)
		api.GET("/languages", s.languages)
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Handler returns the router
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the configured address until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zap.L().Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLanguage picks the language for a request: explicit value, then cookie, then default
func requestLanguage(c *gin.Context, explicit string) model.Language {
	if explicit != "" {
		if lang, err := model.ParseLanguage(explicit); err == nil {
			return lang
		}
	}
	if v, err := c.Cookie(LanguageCookie); err == nil {
		if lang, err := model.ParseLanguage(v); err == nil {
			return lang
		}
	}
	return model.DefaultLanguage
}

var templateFuncs = template.FuncMap{
	"upper":  func(s model.Status) string { return strings.ToUpper(string(s)) },
	"pct":    func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
	"add":    func(a, b int) int { return a + b },
	"native": func(l model.Language) string { return l.NativeName() },
}
