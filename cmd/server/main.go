package main

import (
	"flag"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	app, err := bootstrap(cfg)
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}

	if err := app.run(); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
