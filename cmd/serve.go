package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/api"
	"github.com/sells-group/extraction-service/internal/session"
	"github.com/sells-group/extraction-service/internal/ws"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := session.NewStore()
		mgr := ws.NewManager(store,
			cfg.Websocket.HeartbeatTimeout(),
			cfg.Websocket.SweepInterval(),
		)
		orch := newOrchestrator(cfg, store, mgr)

		server := api.NewServer(store, mgr, orch, api.Config{
			PreviewLimit: cfg.Extraction.PreviewLimit,
			PollInterval: cfg.Tasks.PollInterval(),
		})

		go mgr.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
