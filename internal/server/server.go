// Package server exposes conversion, reconstruction and health checks over
// HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/cocomask/internal/config"
	"github.com/menta2k/cocomask/pkg/cache"
	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/reconstruct"
)

// Options wires a Server.
type Options struct {
	Config     *config.Config
	Categories *categories.Table
	// Cache defaults to no caching.
	Cache   cache.Cache
	Logger  *zap.Logger
	Version string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	cfg           *config.Config
	cats          *categories.Table
	cache         cache.Cache
	extractor     *extract.Extractor
	reconstructor *reconstruct.Reconstructor
	processor     *processing.Processor
	logger        *zap.Logger
	version       string
	now           func() time.Time
}

func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := opts.Cache
	if c == nil {
		c = cache.None{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Server{
		cfg:   cfg,
		cats:  opts.Categories,
		cache: c,
		extractor: extract.New(opts.Categories, extract.Config{
			MinArea:           cfg.Extract.MinArea,
			SimplifyTolerance: cfg.Extract.SimplifyTolerance,
			Logger:            logger,
		}),
		reconstructor: reconstruct.New(logger),
		processor:     processing.NewProcessor(logger),
		logger:        logger,
		version:       opts.Version,
		now:           now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": s.version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    s.version,
			"categories": s.cats.Len(),
		})
	})

	api := r.Group("/api/v1")
	api.Use(BodyLimit(s.cfg.Server.MaxUploadSize))
	{
		api.POST("/convert", s.Convert)
		api.POST("/reconstruct", s.Reconstruct)
		api.POST("/health", s.Health)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Port,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", s.cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
