package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"thoughtpost/internal/app"
	"thoughtpost/pkg/banner"
	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseFlags()

	cfgPath := flags.Config
	if env := os.Getenv("THOUGHTPOST_CONFIG"); env != "" && !flags.Set["config"] {
		cfgPath = env
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Explicit flags win over file and env values.
	addr := cfg.Server.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
	}
	dbPath := cfg.Storage.DBPath
	if flags.Set["db"] || dbPath == "" {
		dbPath = flags.DB
	}

	logger.InitWithLevel(cfg.Logging.Level)

	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	banner.Print(addr, dbPath, cfg.Channel.RedisAddr, verStr)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, addr, dbPath, verStr)
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath)
	}
	if err := a.Run(ctx); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}
