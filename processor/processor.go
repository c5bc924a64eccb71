// Package processor owns the running evcert instance: it builds the engine
// from configuration, serves it over HTTP and MQTT, and swaps in a fresh
// engine when the configuration changes on disk.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/engine"
	"github.com/timzifer/evcert/internal/logging"
	"github.com/timzifer/evcert/internal/mqttbridge"
	"github.com/timzifer/evcert/internal/reload"
	"github.com/timzifer/evcert/internal/server"
	"github.com/timzifer/evcert/telemetry"
)

// ReloadFunc re-reads the configuration and swaps the engine.
type ReloadFunc func(ctx context.Context) error

// Option configures the processor during construction.
type Option func(*settings) error

type settings struct {
	config            *config.Config
	configPath        string
	registerReload    func(ReloadFunc)
	logger            zerolog.Logger
	customLogger      bool
	telemetry         telemetry.Collector
	telemetryProvided bool
	gatherer          prometheus.Gatherer
	engineOptions     []engine.Option
}

// Processor holds the current engine and the adapters serving it.
type Processor struct {
	mu sync.Mutex

	config     *config.Config
	configPath string

	collector     telemetry.Collector
	gatherer      prometheus.Gatherer
	engineOptions []engine.Option

	customLogger bool
	baseLogger   zerolog.Logger
	logs         logging.Set
	cleanup      func()

	engine  atomic.Pointer[engine.Engine]
	watcher *reload.Watcher
	running bool
}

// New loads the configuration (unless one is supplied) and builds the
// first engine.
func New(ctx context.Context, opts ...Option) (*Processor, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		if cfg.configPath == "" {
			return nil, errors.New("configuration path required")
		}
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg.config = loaded
	}

	if !cfg.telemetryProvided {
		collector, gatherer, err := newTelemetryCollector(cfg.config.Telemetry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
			cfg.telemetry = telemetry.Noop()
		} else {
			cfg.telemetry = collector
			if cfg.gatherer == nil {
				cfg.gatherer = gatherer
			}
		}
	}

	proc := &Processor{
		configPath:    cfg.configPath,
		collector:     cfg.telemetry,
		gatherer:      cfg.gatherer,
		engineOptions: cfg.engineOptions,
		customLogger:  cfg.customLogger,
		baseLogger:    cfg.logger,
		cleanup:       func() {},
	}
	if err := proc.apply(cfg.config); err != nil {
		return nil, err
	}

	if cfg.registerReload != nil {
		cfg.registerReload(proc.Reload)
	}
	return proc, nil
}

// Engine returns the engine currently in service.
func (p *Processor) Engine() *engine.Engine {
	return p.engine.Load()
}

// Config returns the configuration the current engine was built from.
func (p *Processor) Config() *config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// Logger returns the root logger of the current runtime.
func (p *Processor) Logger() zerolog.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logs.Root()
}

func (p *Processor) componentLogger(name string) zerolog.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logs.Component(name)
}

// Run serves the enabled adapters until ctx is cancelled or one of them
// fails. Adapter settings are read once; a reload only swaps the engine.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.engine.Load() == nil {
		p.mu.Unlock()
		return errors.New("processor not initialized")
	}
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	cfg := p.config
	logs := p.logs
	watcher := p.watcher
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	// Adapters are built before any goroutine starts.
	var bridge *mqttbridge.Bridge
	if cfg.MQTT.Enabled {
		b, err := mqttbridge.New(cfg.MQTT, p.Engine, logs.Component(logging.ComponentMQTT))
		if err != nil {
			return err
		}
		bridge = b
	}
	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(p.Engine, logs.Component(logging.ComponentHTTP), p.gatherer)
	}

	grp, gctx := errgroup.WithContext(ctx)
	if srv != nil {
		grp.Go(func() error {
			return ignoreCancel(srv.Run(gctx, cfg.Server.Listen))
		})
	}
	if bridge != nil {
		grp.Go(func() error {
			return ignoreCancel(bridge.Run(gctx))
		})
	}
	if watcher != nil {
		grp.Go(func() error {
			watcher.Run(gctx, reload.DefaultInterval, func(files []string) {
				if err := p.reloadFiles(files); err != nil {
					logger := p.componentLogger(logging.ComponentReload)
					logger.Error().Err(err).Strs("files", files).Msg("configuration reload failed")
				}
			})
			return nil
		})
	}
	if srv == nil && bridge == nil {
		root := logs.Root()
		root.Warn().Msg("no adapters enabled; waiting for shutdown")
	}

	grp.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := grp.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Reload rebuilds the engine from the configuration file.
func (p *Processor) Reload(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return p.reloadFiles(nil)
}

// Close releases the logging sinks.
func (p *Processor) Close() {
	p.mu.Lock()
	cleanup := p.cleanup
	p.cleanup = func() {}
	p.mu.Unlock()
	cleanup()
}

func (p *Processor) reloadFiles(files []string) error {
	if p.configPath == "" {
		return errors.New("reload not supported without configuration path")
	}
	cfg, err := config.Load(p.configPath)
	if err != nil {
		// Keep the old snapshot so the broken edit is retried once fixed.
		return err
	}
	if err := p.apply(cfg); err != nil {
		return err
	}
	for _, file := range files {
		p.collector.IncHotReload(file)
	}
	logger := p.componentLogger(logging.ComponentReload)
	logger.Info().Strs("files", files).Msg("configuration reloaded")
	return nil
}

// apply builds the logger and engine for cfg and swaps them in. Nothing is
// swapped on error.
func (p *Processor) apply(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("configuration must not be nil")
	}
	logs := logging.FromLogger(p.baseLogger)
	cleanup := func() {}
	if !p.customLogger {
		var err error
		logs, cleanup, err = logging.Setup(cfg.Logging)
		if err != nil {
			return err
		}
	}

	opts := append([]engine.Option{
		engine.WithLogger(logs.Component(logging.ComponentEngine)),
		engine.WithTelemetry(p.collector),
	}, p.engineOptions...)
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		cleanup()
		return err
	}

	p.mu.Lock()
	old := p.cleanup
	p.config = cfg
	p.logs = logs
	p.cleanup = cleanup
	p.engine.Store(eng)
	p.updateWatcher(cfg)
	p.mu.Unlock()

	log.Logger = logs.Root()
	old()
	return nil
}

func (p *Processor) updateWatcher(cfg *config.Config) {
	if p.configPath == "" || !cfg.HotReload {
		p.watcher = nil
		return
	}
	if p.watcher == nil {
		p.watcher = reload.NewWatcher(cfg)
		return
	}
	p.watcher.Track(cfg)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
