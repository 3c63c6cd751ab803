package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingoflow/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := build(cmd, buildOpts{replenish: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := httpapi.New(httpapi.Deps{
			Settings:      rt.store.SettingsRepo(),
			Catalog:       rt.catalog,
			Conversations: rt.conversations,
			Generation:    rt.generation,
		}, rt.log)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(cfg.Addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		rt.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().String("clipart-dir", "", "Directory served under /api/clipart")
	bindFlags(v, serveCmd.Flags().Lookup("addr"), serveCmd.Flags().Lookup("clipart-dir"))
}
