package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/confdrift/confdrift/internal/api"
	"github.com/confdrift/confdrift/internal/websocket"
)

var (
	listenHost string
	listenPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the confdrift server with the drift watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenHost, "host", "127.0.0.1", "listen address")
	serveCmd.Flags().IntVar(&listenPort, "port", 7317, "listen port")
}

func runServer() error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Forward drift notifications to connected UI clients.
	changes, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	go func() {
		for change := range changes {
			wsHub.BroadcastChange(change)
		}
	}()

	if err := eng.StartWatcher(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", listenHost, listenPort),
		Handler:           api.NewRouter(eng, wsHub),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting confdrift server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		eng.StopWatcher()
		wsHub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
