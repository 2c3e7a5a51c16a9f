package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"

	"instafeed/cmd/app"
	"instafeed/internal/config"
	handlers "instafeed/internal/handler"
	"instafeed/internal/middleware"
)

var logger = loggo.GetLogger("instafeed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "instafeed",
		Short:         "Photo feed and social graph API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply Postgres migrations, Mongo indexes and the image bucket, then exit",
			RunE:  runMigrate,
		},
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg := config.LoadConfig()

	if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
		return nil, errors.Annotatef(err, "invalid LOGGING_CONFIG %q", cfg.LoggingConfig)
	}

	if cfg.JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY is not set")
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if err := a.Migrate(ctx, cfg); err != nil {
		return err
	}
	logger.Infof("migrations complete")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := handlers.NewHandlers(a.Services, a.Hub, map[string]handlers.HealthChecker{
		"postgres": a.DB,
		"mongo":    a.Mongo,
	}, cfg)

	router := mux.NewRouter()
	router.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)
	handler.Routes(router)
	router.Use(
		middleware.RouteLabelMiddleware,
		mux.MiddlewareFunc(middleware.AuthMiddleware(a.Services.Auth)),
	)

	// the last middleware wraps outermost, so logging sees every response
	handlerChain := middleware.Chain(
		router,
		middleware.RateLimitMiddleware(cfg.AuthRateLimit),
		middleware.CORSMiddleware,
		middleware.LoggingMiddleware(a.Metrics),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           handlerChain,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s (postgres %s, mongo %s)", server.Addr, cfg.DB.DbNAME, cfg.Mongo.Database)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
