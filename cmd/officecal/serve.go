package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/officecal/internal/api"
	"github.com/officecal/internal/logger"
	httptransport "github.com/officecal/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the month view over HTTP",
	Long: `Start the JSON API under /api/v1 with a WebSocket feed at /api/v1/ws,
plus /health and /metrics. The address defaults to HTTPAddress from the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTPAddress
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := api.NewAPI(trackerService)
		defer a.Close()

		if trackerService.User() != "" {
			backgroundSync(cmd)
			go func() {
				if err := trackerService.Watch(ctx, nil); err != nil {
					logger.Warning("Live updates unavailable: %v", err)
				}
			}()
		} else {
			logger.Warning("No active user; document endpoints will fail until one is set")
		}

		srvCfg := httptransport.DefaultServerConfig(addr)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		logger.Info("Listening on %s", ln.Addr())

		server := httptransport.NewServer(srvCfg, a.Router())
		if err := httptransport.Serve(ctx, server, ln, srvCfg.ShutdownTimeout); err != nil {
			return err
		}
		logger.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}
