package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"tiebaagent/internal/app"
	"tiebaagent/internal/shared/config"
	"tiebaagent/internal/shared/logger"
	"tiebaagent/internal/shared/types"
)

func main() {
	configPath := flag.String("config", "configs/agent.ini", "Path to config file")
	flag.Parse()

	cfg := new(types.Config)
	if err := config.Load(cfg, *configPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	runner, err := app.NewRunner(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize runner")
	}

	if err := runner.Run(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
	}
}
