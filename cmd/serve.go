package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"

	"github.com/kartoza/airscope/internal/metrics"
	"github.com/kartoza/airscope/internal/predict"
	"github.com/kartoza/airscope/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the website, in a desktop window unless --headless",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.Int("port", 0, "HTTP server port (default from config, 3000)")
	f.Bool("headless", false, "Run in headless mode (no GUI window)")
	f.String("predict-endpoint", "", "prediction service URL")
	f.Duration("predict-timeout", 0, "prediction call timeout (0 waits forever)")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags copies explicitly set flags over the loaded config
func applyServeFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("port") {
		port, _ := f.GetInt("port")
		cfg.Server.Port = port
	}
	if f.Changed("headless") {
		cfg.Headless, _ = f.GetBool("headless")
	}
	if f.Changed("predict-endpoint") {
		cfg.Predict.Endpoint, _ = f.GetString("predict-endpoint")
	}
	if f.Changed("predict-timeout") {
		cfg.Predict.Timeout, _ = f.GetDuration("predict-timeout")
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyServeFlags(cmd); err != nil {
		return err
	}

	requested := cfg.Server.Port
	port, err := probePort(requested, cfg.Server.PortAttempts)
	if err != nil {
		return err
	}
	if port != requested {
		log.Warn().Msgf("Port %d in use, using port %d instead", requested, port)
	}
	cfg.Server.Port = port

	m, err := metrics.NewCollectorWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	client := predict.NewClient(cfg.Predict.Endpoint, cfg.Predict.Timeout).WithMetrics(m)

	log.Info().Msgf("AirScope v%s starting on port %d", cfg.Version, port)
	log.Info().Str("endpoint", client.Endpoint()).Msg("Prediction service")

	srv, err := server.New(*cfg, client, m)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	addr := net.JoinHostPort("localhost", strconv.Itoa(port))
	if err := awaitListener(cmd.Context(), addr, 10*time.Second); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Server may not be ready")
	}
	serverURL := "http://" + addr

	if cfg.Headless {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case sig := <-stop:
			log.Info().Msgf("Received %v signal, shutting down...", sig)
			return srv.Stop()
		}
	}

	// GUI mode: open embedded WebView window
	log.Info().Msg("Opening application window...")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("AirScope")
	w.SetSize(1280, 800, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			log.Error().Err(err).Msg("Server error")
		case sig := <-stop:
			log.Info().Msgf("Received %v signal, shutting down...", sig)
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	log.Info().Msg("Window closed, shutting down server...")
	return srv.Stop()
}
