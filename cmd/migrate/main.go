package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/database"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|status]\n", os.Args[0])
	}
	flag.Parse()

	command := database.MigrateUp
	if flag.NArg() > 0 {
		command = database.MigrationCommand(flag.Arg(0))
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.App.Name+"-migrate")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := database.Migrate(ctx, cfg.Postgres, command, lg); err != nil {
		lg.Error("migration failed", zap.String("command", string(command)), zap.Error(err))
		os.Exit(1)
	}
}
