package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serroba/online-canvas/internal/api"
	"github.com/serroba/online-canvas/internal/collab"
	"github.com/serroba/online-canvas/internal/discovery"
	"github.com/serroba/online-canvas/internal/storage"
	"github.com/serroba/online-canvas/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, slog.Default())
	},
}

func serve(ctx context.Context, logger *slog.Logger) error {
	sc := cfg.Server

	store, err := storage.NewMemoryStore(sc.SnapshotCapacity)
	if err != nil {
		return err
	}

	hub := ws.NewHub()

	manager := collab.NewManager(collab.ManagerConfig{
		Store:          store,
		Hub:            hub,
		SnapshotPolicy: storage.NewSnapshotPolicy(sc.SnapshotThreshold),
		Logger:         logger,
	})

	server := api.NewServer(api.ServerConfig{
		Manager:        manager,
		Store:          store,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: sc.AllowedOrigins,
	})

	ln, err := net.Listen("tcp", sc.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", sc.ListenAddress, err)
	}

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
	}

	if sc.Advertise {
		adv, err := discovery.Advertise(discovery.AdvertiseConfig{
			Instance: sc.Instance,
			Port:     ln.Addr().(*net.TCPAddr).Port,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("mdns advertisement unavailable", "error", err)
		} else {
			defer func() { _ = adv.Close() }()
		}
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("relay listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	return manager.CloseAll()
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Bool("advertise", false, "Announce the relay over mDNS")
	serveCmd.Flags().String("instance", "", "mDNS instance name (defaults to the hostname)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "Origins allowed to open websockets (empty allows all)")

	bindFlag(settings, serveCmd, "server.listen_address", "addr")
	bindFlag(settings, serveCmd, "server.advertise", "advertise")
	bindFlag(settings, serveCmd, "server.instance", "instance")
	bindFlag(settings, serveCmd, "server.allowed_origins", "allowed-origins")

	rootCmd.AddCommand(serveCmd)
}
