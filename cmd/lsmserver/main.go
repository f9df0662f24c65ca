// Command lsmserver runs the command socket in front of an LSMTree:
// load config, open the tree, listen for command frames, and shut down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nrigby/lsmkv/pkg/auth"
	"github.com/nrigby/lsmkv/pkg/config"
	"github.com/nrigby/lsmkv/pkg/logging"
	"github.com/nrigby/lsmkv/pkg/lsm"
	"github.com/nrigby/lsmkv/pkg/metrics"
	"github.com/nrigby/lsmkv/pkg/server"
	"github.com/nrigby/lsmkv/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file; if empty, built-in defaults are used")
	dataDir := flag.String("data", "./data/lsmkv", "database directory (ignored if -config is set)")
	authSecret := flag.String("auth-secret", "", "shared secret required of clients; empty disables auth")
	flag.Parse()

	logger := logging.NewDefaultLogger()

	cfg, err := loadConfig(*configPath, *dataDir, *authSecret)
	if err != nil {
		logger.Error("failed to load config", logging.Error(err))
		os.Exit(1)
	}

	metricsReg := metrics.DefaultRegistry()
	if cfg.Metrics.Enabled {
		startMetricsExporter(cfg.Metrics.ListenAddr, metricsReg, logger)
	}

	opts := lsm.Options{
		DBPath:                 cfg.Storage.DBPath,
		BufferCapacity:         cfg.Storage.BufferCapacity,
		BaseLevelTableCapacity: cfg.Storage.BaseLevelTableCapacity,
		TotalLevels:            cfg.Storage.TotalLevels,
		LevelSizeRatio:         cfg.Storage.LevelSizeRatio,
		BloomFalsePositiveRate: cfg.Storage.BloomFalsePositiveRate,
		Logger:                 logger,
		Metrics:                metricsReg,
	}
	tree, err := lsm.NewLSMTree(opts)
	if err != nil {
		logger.Error("failed to open lsm tree", logging.Error(err))
		os.Exit(1)
	}
	defer tree.Close()

	logger.Info("lsm tree opened", logging.Path(cfg.Storage.DBPath))

	authOpts, err := buildAuthOptions(cfg.Auth)
	if err != nil {
		logger.Error("failed to configure auth", logging.Error(err))
		os.Exit(1)
	}

	factory := transport.NewMangosSocketFactory()
	srv, err := transport.NewServer(tree, factory, cfg.Transport.ListenAddr, authOpts, metricsReg, logger)
	if err != nil {
		logger.Error("failed to start command socket", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("command socket listening", logging.String("addr", cfg.Transport.ListenAddr))

	gs := server.NewGracefulServer(srv)
	if err := gs.Start(); err != nil {
		logger.Error("server exited with error", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func loadConfig(configPath, dataDir, authSecret string) (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg := config.Default(dataDir)
	if authSecret != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.SharedSecret = authSecret
	}
	return cfg, nil
}

// buildAuthOptions hashes the operator-configured plaintext shared
// secret and derives a JWT signing key from it, since the transport
// never needs to see the plaintext again after this point.
func buildAuthOptions(cfg config.AuthConfig) (transport.AuthOptions, error) {
	if !cfg.Enabled {
		return transport.AuthOptions{}, nil
	}
	duration := cfg.TokenDuration
	if duration == 0 {
		duration = 15 * time.Minute
	}
	hash, err := auth.HashSecret(cfg.SharedSecret)
	if err != nil {
		return transport.AuthOptions{}, fmt.Errorf("hash shared secret: %w", err)
	}
	signingSecret := fmt.Sprintf("%s:%x", cfg.SharedSecret, hash)
	mgr, err := auth.NewJWTManager(signingSecret, duration)
	if err != nil {
		return transport.AuthOptions{}, err
	}
	validator := auth.NewCompositeTokenValidator(mgr, auth.NewSharedSecretValidator(hash))
	return transport.AuthOptions{Enabled: true, SecretHash: hash, JWTManager: mgr, Validator: validator}, nil
}

func startMetricsExporter(addr string, reg *metrics.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics exporter stopped", logging.Error(err))
		}
	}()
}
