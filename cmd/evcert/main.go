package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/engine"
	"github.com/timzifer/evcert/processor"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	evaluatePath := flag.String("evaluate", "", "Evaluate a form file (YAML or JSON) and print the report")
	maxZsTable := flag.Bool("max-zs-table", false, "Print the maximum Zs table and exit")
	flag.Parse()

	if *maxZsTable {
		printMaxZsTable(os.Stdout)
		return
	}

	if *evaluatePath != "" {
		cfg, err := loadOptional(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
		eng, err := engine.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build engine")
		}
		if err := evaluateFile(os.Stdout, eng, *evaluatePath); err != nil {
			log.Fatal().Err(err).Msg("evaluation failed")
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *configCheck {
		os.Exit(executeConfigCheck(os.Stdout, cfg))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var reloadFn processor.ReloadFunc
	proc, err := processor.New(ctx,
		processor.WithConfig(cfg),
		processor.WithConfigPath(*cfgPath, func(fn processor.ReloadFunc) { reloadFn = fn }),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer proc.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := reloadFn(ctx); err != nil {
					logger := proc.Logger()
					logger.Error().Err(err).Msg("reload on SIGHUP failed")
				}
			}
		}
	}()

	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger := proc.Logger()
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
}

// loadOptional loads path when it exists and falls back to the defaults
// otherwise, so one-shot commands work without a config file.
func loadOptional(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}
	return config.Load(path)
}
