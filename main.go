package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doffcore/compose/libs/compose"
)

// Greeter is the flagship demo's only service: small enough to show the
// whole boot pipeline (config -> modules -> container -> metrics ->
// serve -> shutdown) without any domain noise.
type Greeter struct {
	prefix string
}

func NewGreeter(config compose.ConfigManager) *Greeter {
	prefix := config.GetString("greeting.prefix")
	if prefix == "" {
		prefix = "Hello"
	}
	return &Greeter{prefix: prefix}
}

func (g *Greeter) Greet(name string) string {
	return g.prefix + ", " + name + "!"
}

func configureGreeterModule(config compose.ConfigManager) func(*compose.Builder) error {
	return func(b *compose.Builder) error {
		compose.BindInstance[compose.ConfigManager](b, config, compose.WithModule("greeter"))
		return compose.Bind[*Greeter](b, NewGreeter, compose.WithModule("greeter"))
	}
}

func main() {
	config := compose.NewConfigManager()
	if err := config.Load(""); err != nil {
		panic(err)
	}

	logger := compose.DefaultLogger()
	metricsRegistry := prometheus.NewRegistry()
	metrics := compose.NewMetrics(metricsRegistry)

	registry := compose.NewModuleRegistry(logger)
	if err := registry.Register(&compose.ModuleDescriptor{
		Name:      "greeter",
		Exports:   []string{"Greeter"},
		Config:    compose.LoadBootConfig(config),
		Configure: configureGreeterModule(config),
	}); err != nil {
		panic(err)
	}

	sequencer := compose.NewBootSequencer(registry, compose.NewModuleComposition()).WithMetrics(metrics)

	builder, err := sequencer.Configure()
	if err != nil {
		logger.Error("configure failed: %v", err)
		os.Exit(1)
	}
	builder.WithMetrics(metrics)

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
	compose.SetCurrent(container)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(compose.ScopeMiddleware(container))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))
	router.GET("/greet/:name", func(c *gin.Context) {
		greeter, err := compose.ResolveRequest[*Greeter](c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": greeter.Greet(c.Param("name"))})
	})

	httpServer := &http.Server{Addr: ":3037", Handler: router}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error: %v", err)
		}
	}()

	logger.Info("compose: serving on :3037")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	sequencer.Shutdown(ctx)
}
