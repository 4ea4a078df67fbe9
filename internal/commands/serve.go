package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ATLAS-backend/internal/platform/clock"
	"ATLAS-backend/internal/platform/db"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		if cfg.DB.Driver == db.DriverSQLite {
			// ローカル用。MySQL は migrate コマンドで明示的に流す
			if err := db.Migrate(cmd.Context(), conn, cfg.DB.Driver); err != nil {
				return err
			}
		}

		a, err := newApp(cfg, conn, clock.Real{})
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, a)
	},
}

// tlsFiles は mode ごとのディレクトリから証明書を探す。未設定なら平文で待ち受ける。
func tlsFiles(cfg *db.Config) (string, string, bool) {
	if cfg.Certificate.Cert == "" || cfg.Certificate.Key == "" {
		return "", "", false
	}
	dir := "config/tls/" + cfg.Mode
	return fmt.Sprintf("%s/%s", dir, cfg.Certificate.Cert), fmt.Sprintf("%s/%s", dir, cfg.Certificate.Key), true
}

func serve(ctx context.Context, cfg *db.Config, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile, keyFile, ok := tlsFiles(cfg); ok {
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[INFO] listening on http://%s (no certificate configured)", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Println("[INFO] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
