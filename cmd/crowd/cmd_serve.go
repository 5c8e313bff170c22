package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/crowd/stream"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation in real time and stream snapshots over websocket",
		Long: `Serve paces the simulation at the configured frame rate and exposes a
websocket endpoint at /ws. Connected clients receive JSON snapshots and can
queue spawn and destroy commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			broadcastMS, _ := cmd.Flags().GetInt("broadcast-ms")
			return serve(cmd, addr, broadcastMS)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Int("broadcast-ms", 50, "Snapshot broadcast interval in milliseconds")
	return cmd
}

func serve(cmd *cobra.Command, addr string, broadcastMS int) error {
	engine, cfg, _, err := setupEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := stream.NewServer(engine, time.Duration(broadcastMS)*time.Millisecond)
	go server.Run(ctx)

	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	// Pace frames at the configured dt.
	ticker := time.NewTicker(time.Duration(cfg.Sim.DT * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown", "error", err)
			}
			slog.Info("stopped", "frames", engine.Frame())
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("http server: %w", err)
		case <-ticker.C:
			if err := engine.Step(); err != nil {
				return fmt.Errorf("frame %d: %w", engine.Frame(), err)
			}
		}
	}
}
