package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vidgrab/config"
	"vidgrab/events"
	"vidgrab/handlers"
	"vidgrab/middleware"
	"vidgrab/services"
	"vidgrab/websocket"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server bundles the long-lived pieces of the web server
type Server struct {
	Config  *config.Config
	Store   services.JobStore
	Worker  *services.Worker
	Cleanup *services.CleanupScheduler
	Hub     websocket.Hub
	Router  *gin.Engine

	publisher *events.Publisher
}

// NewServer wires the services and routes. The retriever is the download engine.
func NewServer(cfg *config.Config, retriever services.Retriever) (*Server, error) {
	if err := cfg.EnsureDownloadDir(); err != nil {
		return nil, err
	}

	hub := websocket.NewHub()
	go hub.Run()

	s := &Server{
		Config: cfg,
		Store:  services.NewJobStore(),
		Hub:    hub,
	}

	var publisher services.EventPublisher
	if cfg.NATSURL != "" {
		p, err := events.Connect(cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			hub.Shutdown()
			return nil, err
		}
		s.publisher = p
		publisher = p
		log.Printf("Publishing job events to %s (%s.*)", cfg.NATSURL, cfg.SubjectPrefix)
	}

	s.Worker = services.NewWorker(s.Store, retriever, cfg.DownloadDir, hub, publisher)
	s.Cleanup = services.NewCleanupScheduler(s.Store, cfg.CleanupDelay)

	videoHandler := handlers.NewVideoHandler(s.Store, s.Worker, s.Cleanup, hub, cfg.DownloadDir)
	healthHandler := handlers.NewHealthHandler(s.Store, cfg.DownloadDir)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Logging())
	r.Use(middleware.Security())
	SetupRoutes(r, videoHandler, healthHandler)
	s.Router = r

	return s, nil
}

// Close stops timers, websocket clients and the event connection.
// Running downloads are not cancelled.
func (s *Server) Close() {
	s.Cleanup.Stop()
	s.Hub.Shutdown()
	if s.publisher != nil {
		s.publisher.Close()
	}
}

// StartWebServer runs the HTTP server until SIGINT or SIGTERM
func StartWebServer(cfg *config.Config) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, services.NewYtdlpRetriever(cfg.YtdlpPath))
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("vidgrab web server starting on port %d", cfg.Port)
		log.Printf("Download directory: %s", cfg.DownloadDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// SetupRoutes configures all the HTTP routes
func SetupRoutes(r *gin.Engine, videoHandler *handlers.VideoHandler, healthHandler *handlers.HealthHandler) {
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/status", healthHandler.APIStatus)

	videoGroup := r.Group("/video")
	{
		videoGroup.POST("/request-download", videoHandler.RequestDownload)
		videoGroup.GET("/:id", videoHandler.GetStatus)
		videoGroup.GET("/:id/download", videoHandler.DownloadFile)
		videoGroup.GET("/:id/ws", videoHandler.HandleWebSocketConnection)
	}

	r.GET("/ws/videos", videoHandler.HandleWebSocketAllConnection)
}
