package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/argus/pkg/auth"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/observability"
	"github.com/kadirpekel/argus/pkg/server"
)

// ServeCmd starts the HTTP run API and, when configured, the MCP server.
type ServeCmd struct {
	HTTP  string `help:"HTTP listen address override (host:port)." placeholder:"ADDR"`
	MCP   string `help:"Enable the MCP surface on the given transport." enum:",stdio,http" default:"" placeholder:"stdio|http"`
	Watch bool   `help:"Watch the config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config, config.ZeroConfigOptions{})
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	obs := observability.NewManager(cfg.Global.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	validator, err := auth.NewValidator(cfg.Server.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	runner := server.NewRunner(agentFactory(cfg), cfg.Server.MaxConcurrentRuns)

	opts := []server.ServerOption{server.WithObservability(obs)}
	if validator != nil {
		opts = append(opts, server.WithAuthValidator(validator))
	}
	srv := server.New(&cfg.Server, runner, opts...)

	stdioMCP := cfg.Server.MCP.Enabled && cfg.Server.MCP.Transport == config.MCPTransportStdio
	if !stdioMCP {
		// With MCP on stdio, stdout is the wire; nothing else may write there.
		printServeInfo(cfg, obs)
	}

	seedKnowledge(ctx, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })

	if cfg.Server.MCP.Enabled {
		mcpAgent, release, err := buildAgent(ctx, cfg, false)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to build MCP agent: %w", err)
		}
		defer release()
		mcpSrv := server.NewMCPServer(mcpAgent, buildVersion())

		g.Go(func() error {
			if cfg.Server.MCP.Transport == config.MCPTransportHTTP {
				addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MCP.Port))
				return mcpSrv.ServeHTTP(gctx, addr)
			}
			return mcpSrv.ServeStdio(gctx)
		})
	}

	return g.Wait()
}

// applyOverrides forces CLI flags over the configured serving surface.
func (c *ServeCmd) applyOverrides(cfg *config.Config) error {
	if c.HTTP != "" {
		host, port, err := net.SplitHostPort(c.HTTP)
		if err != nil {
			return fmt.Errorf("invalid --http address %q: %w", c.HTTP, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid --http port %q: %w", port, err)
		}
		if host != "" {
			cfg.Server.Host = host
		}
		cfg.Server.Port = p
	}
	if c.MCP != "" {
		cfg.Server.MCP.Enabled = true
		cfg.Server.MCP.Transport = config.MCPTransport(c.MCP)
	}
	return nil
}

// printServeInfo prints the serving endpoints.
func printServeInfo(cfg *config.Config, obs *observability.Manager) {
	green := "\033[38;2;16;185;129m"
	reset := "\033[0m"

	fmt.Printf("\n%sargus server ready%s\n", green, reset)
	fmt.Printf("   Runs API:   http://%s/v1/runs\n", cfg.Server.Address())
	fmt.Printf("   Health:     http://%s/healthz\n", cfg.Server.Address())
	if obs.MetricsEnabled() {
		fmt.Printf("   Metrics:    http://%s%s\n", cfg.Server.Address(), obs.MetricsEndpoint())
	}
	if cfg.Server.Auth != nil && cfg.Server.Auth.Enabled {
		fmt.Printf("   Auth:       JWT via %s\n", cfg.Server.Auth.JWKSURL)
	}
	if cfg.Server.MCP.Enabled && cfg.Server.MCP.Transport == config.MCPTransportHTTP {
		fmt.Printf("   MCP:        http://%s\n", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MCP.Port)))
	}
	fmt.Printf("   Capacity:   %d concurrent runs\n", cfg.Server.MaxConcurrentRuns)
	fmt.Println("\nPress Ctrl+C to stop")
}
