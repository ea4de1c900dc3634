// Command warblerd runs the data layer as a standalone process: it opens
// the configured stores, bridges the remote change feed when enabled, and
// serves the metrics endpoint until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"warbler/internal/config"
	"warbler/internal/core"
)

func main() {
	configPath := flag.String("config", "./warbler.yaml", "path to the YAML config file")
	writeConfig := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.Save(*configPath, config.Default()); err != nil {
			log.Fatalf("write config: %v", err)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := core.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer func() { _ = client.Close() }()

	log.Printf("warblerd up: storage=%s blob=%s", storageName(cfg), client.Blob.Driver())
	<-ctx.Done()
	log.Printf("shutting down")
}

// loadConfig reads the config file when present and falls back to the
// defaults otherwise; the environment wins in both cases.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return config.Config{}, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

func storageName(cfg config.Config) string {
	if cfg.Storage.Driver == "" {
		return "memory"
	}
	return cfg.Storage.Driver
}
