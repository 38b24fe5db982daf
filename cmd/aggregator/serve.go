package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RG7on/data-aggregator/pkg/server"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control panel HTTP server",
	Long: `serve starts the local control panel: settings and credentials
editing over HTTP, the scrape log, and a websocket feed of live scrape
status. It runs alongside the scheduled pipeline, reading the same
database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(cfgDir, st, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.Hub().Run(ctx)
		}()
		go func() {
			defer wg.Done()
			srv.BroadcastScrapeLog(ctx)
		}()

		httpSrv := &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Global.ControlPort),
			Handler:      srv.Router(),
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("control panel listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			stop()
			wg.Wait()
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down control panel")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
		wg.Wait()
		return nil
	},
}
