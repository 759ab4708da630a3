package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kartoza/airscope/internal/api"
	"github.com/kartoza/airscope/internal/metrics"
	"github.com/kartoza/airscope/internal/regressor"
	"github.com/kartoza/airscope/internal/store"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the prediction service",
	RunE:  runBackend,
}

func init() {
	f := backendCmd.Flags()
	f.Int("port", 0, "HTTP port (default from config, 8000)")
	f.String("db", "", "sqlite database path")
	f.String("model-dir", "", "directory holding <type>_model.json files")
	rootCmd.AddCommand(backendCmd)
}

func applyBackendFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Backend.Port, _ = f.GetInt("port")
	}
	if f.Changed("db") {
		cfg.Backend.DBPath, _ = f.GetString("db")
	}
	if f.Changed("model-dir") {
		cfg.Backend.ModelDir, _ = f.GetString("model-dir")
	}
	return cfg.Validate()
}

// openStore opens the database, creating its directory when needed
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return store.Open(path)
}

func runBackend(cmd *cobra.Command, args []string) error {
	if err := applyBackendFlags(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := regressor.LoadAll(cfg.Backend.ModelDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	if len(set) == 0 {
		log.Warn().Str("dir", cfg.Backend.ModelDir).Msg("No models loaded, predictions will be empty")
	}

	st, err := openStore(cfg.Backend.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Store close")
		}
	}()

	m, err := metrics.NewCollectorWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	router := mux.NewRouter()
	api.NewHandler(set, st, *cfg).RegisterRoutes(router.PathPrefix("/api").Subrouter())
	router.Handle("/metrics", m.Handler()).Methods("GET")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Backend.Port),
		Handler:      api.CORS(api.Instrument(router, m)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Prediction service listening on http://localhost:%d", cfg.Backend.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutting down prediction service...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
