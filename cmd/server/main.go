package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ishankgp/indegenge-persona-sub003/internal/config"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s (%v), falling back to env-only config", cfgPath, err)
		cfg = config.FromEnv()
	}

	zlog, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	srv, err := server.New(context.Background(), cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize server", "error", err)
	}

	r := srv.SetupRouter()
	zlog.Info("starting knowledge graph server", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		zlog.Fatal("server exited", "error", err)
	}
}
