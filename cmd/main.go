package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/pipeline"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath = flag.String("config", "config.yml", "path to YAML config")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg.Log, *verbose)

	log := logger.WithField("component", "quake-ingester")
	log.WithField("version", Version).Info("starting")

	// Context with signal cancel
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg, pipeline.WithLogger(log))
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"run_id": res.RunID,
		"rows":   res.Table.Len(),
		"sinks":  res.Sinks,
		"plots":  res.Plots,
	}).Info("done")
}

func configureLogger(l *logrus.Logger, c config.LogConfig, verbose bool) {
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		l.SetLevel(level)
	} else {
		l.Warnf("unknown log level %q, using info", c.Level)
	}
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
