package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/expense-insights/api"
	"github.com/frahmantamala/expense-insights/internal/transport/rest"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var serverPort int

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "listen port (overrides config)")
}

func startHTTPServer() error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	if _, err := api.Load(context.Background()); err != nil {
		return err
	}

	app, err := newApp(cfg, lg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.startImportDispatch(); err != nil {
		return err
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, app.handlers(), app.allowedOrigins(), lg)

	port := cfg.Server.Port
	if serverPort > 0 {
		port = serverPort
	}
	addr := fmt.Sprintf(":%d", port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	lg.Info("server stopped")
	return nil
}
