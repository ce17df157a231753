package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/augur/adapter/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the reading API until interrupted.

Routes:
  GET  /health
  GET  /api/v1/modules
  POST /api/v1/modules/{module}/readings
  GET  /api/v1/modules/{module}/entitlement
  GET  /api/v1/modules/{module}/spin
  POST /api/v1/modules/{module}/spin
  POST /api/v1/payments/approved

Session-scoped routes take the session from the X-Session-ID header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), app, serverFor(app))
	},
}

// serverConfig applies the app's address and request budget to the
// default server settings.
func serverConfig(app *App) api.ServerConfig {
	cfg := api.DefaultServerConfig()
	cfg.Addr = app.HTTPAddr
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	cfg.WriteTimeout = max(cfg.WriteTimeout, app.RequestTimeout)
	return cfg
}

func serverFor(app *App) *api.Server {
	cfg := serverConfig(app)

	handler := api.NewHandler(api.HandlerConfig{
		Readings:     app.Readings,
		Entitlements: app.Entitlements,
		Prizes:       app.Prizes,
		Payments:     app.Payments,
		Logger:       Logger(),
	})
	return api.NewServer(cfg, handler, app.Health, Logger())
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, app *App, server *api.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
