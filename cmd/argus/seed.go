package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/knowledge"
	"github.com/kadirpekel/argus/pkg/memory"
)

// SeedCmd loads operator documents into semantic memory and the configured
// vector index, so fresh agents start with site notes.
type SeedCmd struct {
	Dir string `help:"Document directory (overrides configured sources)." type:"path" placeholder:"PATH"`
}

func (c *SeedCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Interrupt received, stopping seeding")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config, config.ZeroConfigOptions{})
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.Dir == "" && len(cfg.Knowledge.Sources) == 0 {
		return fmt.Errorf("nothing to seed: pass --dir or configure knowledge sources")
	}
	if cfg.Knowledge.Embedder == "" || cfg.Knowledge.Vector == "" {
		slog.Warn("No vector index configured; seeded entries will not outlive this process")
	}

	mem, err := memory.NewManager(&cfg.Memory)
	if err != nil {
		return err
	}
	seeder, closers, err := buildSeeder(cfg, mem)
	if err != nil {
		return err
	}
	defer closers.close()

	var res knowledge.SeedResult
	if c.Dir != "" {
		res, err = seeder.Seed(ctx, c.Dir)
	} else {
		res, err = seeder.SeedAll(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d entries from %d files (%d skipped)\n", res.Entries, res.Files, res.Skipped)
	return nil
}
