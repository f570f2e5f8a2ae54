// Package status serves a bot's session state and Prometheus metrics over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/palctl/internal/bot"
	"github.com/danmuck/palctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Source reports the session state served at /status.
type Source interface {
	Status() bot.Status
}

type Server struct {
	Addr    string
	Started time.Time

	source Source
	router *gin.Engine
}

func New(addr string, source Source) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetrics())
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:    addr,
		Started: time.Now(),
		source:  source,
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.Started).String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.source.Status()
		code := http.StatusOK
		if !st.LoggedIn {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":      st.LoggedIn,
			"connected":  st.Connected,
			"session_id": st.SessionID,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.source.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("status.Server listening addr=%s", s.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msgf("status.Server stopped addr=%s", s.Addr)
	return nil
}
