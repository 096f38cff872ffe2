package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/encore/internal/server"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/desertthunder/encore/internal/tokens"
	"github.com/urfave/cli/v3"
)

// Serve runs the top tracks web service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	open := cmd.Bool("open")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			r.logger.Warnf("failed to load config, using defaults %v", err)
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(config.Spotify, config.Tracks)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	codec := tokens.NewCodec(config.Tokens.SigningSecret, time.Duration(config.Tokens.TTLMinutes)*time.Minute)
	authorizer := server.NewAuthorizer(codec, spotify, r.logger)

	router := server.NewBasicRouter()
	router.Use(
		server.Logging(r.logger),
		server.CORS(config.Server.AllowedOrigins),
		server.Throttle(10, 20),
	)
	router.Handler(server.NewConnectHandler(spotify, r.logger))
	router.Handler(server.NewCallbackHandler(spotify, codec, config.Server.FrontendURL, r.logger))
	router.Handler(server.NewSongsHandler(authorizer, spotify, r.logger))
	router.Handler(&server.HealthHandler{})

	httpServer := &http.Server{
		Addr:    config.Server.Addr(),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("serving top tracks API at %v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	if open {
		if err := shared.OpenBrowser(config.Server.FrontendURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	case <-stop:
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	return nil
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the top tracks web service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the frontend URL in the default browser",
				Value: false,
			},
		},
		Action: r.Serve,
	}
}
