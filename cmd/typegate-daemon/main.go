package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/daemon"
	"github.com/alucardeht/typegate/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	socketPath := flag.String("socket", "", "unix socket path (overrides config)")
	dbPath := flag.String("db", "", "spec database path (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	var watchRoots multiFlag
	flag.Var(&watchRoots, "watch", "directory to watch for changing documents (repeatable)")
	flag.Parse()

	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if len(watchRoots) > 0 {
		cfg.Watcher.Enabled = true
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logger.Init(logCfg)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to ensure directories: %v", err)
	}

	baseDir := filepath.Dir(cfg.SocketPath)
	lifecycle := daemon.NewLifecycleManager(baseDir, cfg.SocketPath)
	if err := lifecycle.AcquireInstanceLock(); err != nil {
		log.Fatalf("%v", err)
	}
	defer lifecycle.Cleanup()

	if err := lifecycle.RegisterRunningDaemon(); err != nil {
		log.Fatalf("Failed to write PID file: %v", err)
	}

	d, err := daemon.NewDaemon(cfg)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	for _, root := range watchRoots {
		if w := d.Watcher(); w != nil {
			if err := w.AddRoot(root); err != nil {
				log.Fatalf("Failed to watch %s: %v", root, err)
			}
		}
	}

	if err := d.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}
}

type multiFlag []string

func (m *multiFlag) String() string { return "" }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
