package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doffcore/compose/libs/compose"
)

// MyService is the starting point for a new service built on this
// module: rename the type, add its real dependencies as constructor
// parameters, and compose.Bind derives them automatically.
type MyService struct{}

func NewMyService() *MyService { return &MyService{} }

func (s *MyService) DoSomething() string { return "Hello from MyService!" }

func configureMyServiceModule(b *compose.Builder) error {
	return compose.Bind[*MyService](b, NewMyService, compose.WithModule("my-service"))
}

func main() {
	config := compose.NewConfigManager()
	if err := config.Load(""); err != nil {
		panic(err)
	}

	logger := compose.DefaultLogger()
	registry := compose.NewModuleRegistry(logger)
	if err := registry.Register(&compose.ModuleDescriptor{
		Name:      "my-service",
		Exports:   []string{"MyService"},
		Config:    compose.LoadBootConfig(config),
		Configure: configureMyServiceModule,
	}); err != nil {
		panic(err)
	}

	sequencer := compose.NewBootSequencer(registry, compose.NewModuleComposition())
	builder, err := sequencer.Configure()
	if err != nil {
		logger.Error("configure failed: %v", err)
		os.Exit(1)
	}
	container, err := sequencer.Build(builder)
	if err != nil {
		logger.Error("build failed: %v", err)
		os.Exit(1)
	}
	if err := sequencer.Initialize(context.Background()); err != nil {
		logger.Error("initialize failed: %v", err)
		os.Exit(1)
	}
	sequencer.Serve()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(compose.ScopeMiddleware(container))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "MyService",
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/do", func(c *gin.Context) {
		svc, err := compose.ResolveRequest[*MyService](c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": svc.DoSomething()})
	})

	httpServer := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	sequencer.Shutdown(ctx)
}
