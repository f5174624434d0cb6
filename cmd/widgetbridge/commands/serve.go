package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/livetemplate/widgetbridge/internal/app"
	"github.com/livetemplate/widgetbridge/internal/assets"
	"github.com/livetemplate/widgetbridge/internal/bridge"
	"github.com/livetemplate/widgetbridge/internal/config"
	"github.com/livetemplate/widgetbridge/internal/server"
)

// shutdownTimeout bounds graceful shutdown after an interrupt.
const shutdownTimeout = 5 * time.Second

// serveOptions are the serve flags. Nil pointers mean "not set".
type serveOptions struct {
	configPath string
	port       string
	host       string
	embedded   *bool
	watch      *bool
	debug      *bool
}

func parseServeArgs(args []string) (serveOptions, error) {
	var opts serveOptions
	on := func() *bool { v := true; return &v }

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--watch", "-w":
			opts.watch = on()
		case "--embedded":
			opts.embedded = on()
		case "--debug":
			opts.debug = on()
		case "--port", "-p", "--host", "--config", "-c":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", arg)
			}
			val := args[i+1]
			i++
			switch arg {
			case "--port", "-p":
				opts.port = val
			case "--host":
				opts.host = val
			default:
				opts.configPath = val
			}
		default:
			return opts, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return opts, nil
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		if _, statErr := os.Stat(opts.configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override config
	if opts.port != "" {
		portInt, err := strconv.Atoi(opts.port)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %s", opts.port)
		}
		cfg.Server.Port = portInt
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.embedded != nil {
		cfg.Component.Embedded = *opts.embedded
	}
	if opts.watch != nil {
		cfg.Features.HotReload = *opts.watch
	}
	if opts.debug != nil {
		cfg.Server.Debug = *opts.debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// declareComponent registers the anywidget frontend the way cfg asks for.
func declareComponent(cfg *config.Config) (*bridge.Registry, *bridge.Component, error) {
	registry := bridge.NewRegistry(cfg.Server.Debug)

	opt := bridge.WithURL(cfg.Component.URL)
	if cfg.Component.Embedded {
		opt = bridge.WithFS(assets.FrontendFS())
	}
	c, err := registry.Declare(cfg.Component.Name, opt)
	if err != nil {
		return nil, nil, err
	}
	return registry, c, nil
}

// buildServer wires the registry, widget sources and demo pages.
func buildServer(cfg *config.Config) (*server.Server, *bridge.Component, *app.Sources, error) {
	registry, component, err := declareComponent(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	src, err := app.NewSources(cfg.Widgets.Dir)
	if err != nil {
		return nil, nil, nil, err
	}

	srv := server.New(cfg, registry)
	srv.Handle("/", "Anywidget demo", app.Demo(registry, src, cfg.Server.Debug))
	srv.Handle("/bridge", "Component bridge", app.BridgeDemo(registry))
	return srv, component, src, nil
}

func probeConfig(cfg *config.Config) bridge.RetryConfig {
	rc := bridge.DefaultRetryConfig()
	rc.Timeout = cfg.Component.GetProbeTimeout()
	rc.MaxRetries = cfg.Component.GetProbeMaxRetries()
	rc.BaseDelay = cfg.Component.GetProbeBaseDelay()
	rc.EnableLog = cfg.Server.Debug
	return rc
}

// checkComponent warns when the component frontend is unreachable. Pages
// still render; components show their defaults until the frontend is up.
// Interrupting the probe is not an error.
func checkComponent(ctx context.Context, component *bridge.Component, cfg *config.Config) error {
	err := bridge.Probe(ctx, http.DefaultClient, component, probeConfig(cfg))
	switch {
	case err == nil:
		return nil
	case bridge.IsUnreachable(err):
		fmt.Printf("⚠️  %v\n", err)
		fmt.Printf("   Start it with `widgetbridge frontend` or rerun with --embedded\n")
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("check component %s: %w", component.Name, err)
	}
}

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	opts, err := parseServeArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.configPath != "" {
		fmt.Printf("📝 Using config: %s\n", opts.configPath)
	}

	srv, component, src, err := buildServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🧩 widgetbridge host server\n\n")
	fmt.Printf("Component: %s at %s\n", component.Name, component.Src())

	if !cfg.Component.Embedded {
		if err := checkComponent(ctx, component, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("\nPages:\n")
	for _, route := range srv.Routes() {
		fmt.Printf("  %-12s %s\n", route.Pattern, route.Title)
	}

	if cfg.Features.HotReload {
		if src.Dir() == "" {
			fmt.Printf("\n👀 Watch mode needs widgets.dir in %s; bundled sources are not watched\n", config.FileName)
		} else {
			if err := srv.EnableWatch(src.Dir(), src.OnChange); err != nil {
				return fmt.Errorf("failed to enable watch mode: %w", err)
			}
			fmt.Printf("\n👀 Watch mode enabled - edit widgets in %s and pages reload\n", src.Dir())
		}
	}

	addr := cfg.Server.Addr()
	fmt.Printf("\n🌐 Server running at http://%s\n", addr)
	if cfg.Features.Compression {
		fmt.Printf("⚡ Gzip compression enabled\n")
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenUntilDone(ctx, httpServer, srv.Close)
}

// listenUntilDone serves until ctx is cancelled, then shuts down gracefully
// and runs cleanup.
func listenUntilDone(ctx context.Context, httpServer *http.Server, cleanup func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if cleanup != nil {
			cleanup()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	if cleanup != nil {
		if err := cleanup(); err != nil {
			log.Printf("Cleanup: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}
