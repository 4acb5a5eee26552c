// Package main provides the groundwater product query HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/adapter/store/dataset"
	"go.ngs.io/gws-anomaly/internal/config"
	httpHandler "go.ngs.io/gws-anomaly/internal/http"
	"go.ngs.io/gws-anomaly/internal/observability"
	"go.ngs.io/gws-anomaly/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	configFile := flag.String("config", "", "Path to a TOML configuration file")
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("gws-server version %s\n", version)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "gws-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	paths, err := productFiles(cfg.Server.ProductFile)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"files": paths}).Info("loading groundwater product")
	query, err := usecase.LoadProductQuery(dataset.Files{}, paths...)
	if err != nil {
		return err
	}
	times := query.Times()
	if len(times) == 0 {
		return fmt.Errorf("product %v has no time steps", paths)
	}
	log.WithFields(logrus.Fields{
		"steps": len(times),
		"first": times[0].Format(time.DateOnly),
		"last":  times[len(times)-1].Format(time.DateOnly),
	}).Info("product loaded")

	router := httpHandler.SetupRouter(query, observability.NewMetrics(), log, cfg.Server.CORSOrigins)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr}).Info("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// productFiles expands a product path. A glob such as
// output/groundwater_anomaly_*.nc serves a product split by year.
func productFiles(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("product pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no product files match %q", pattern)
	}
	return paths, nil
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Groundwater Anomaly Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  gws-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -config PATH   TOML configuration file")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  GWS_SERVER_PORT            Server port (default: 8080)")
	fmt.Println("  GWS_SERVER_PRODUCT_FILE    Product file or glob (default: output/groundwater_anomaly.nc)")
	fmt.Println("  GWS_SERVER_CORS_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  GWS_LOG_LEVEL              Log level (default: info)")
	fmt.Println("  GWS_LOG_FORMAT             text or json (default: text)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                                Health check")
	fmt.Println("  GET /metrics                               Prometheus metrics")
	fmt.Println("  GET /v1/groundwater/times                  Product time steps")
	fmt.Println("  GET /v1/groundwater/series?lat=..&lon=..   Anomaly series at a point")
	fmt.Println()
}
