package main

import (
	"context"
	"flag"
	"time"

	"fsanano/foodshare/internal/config"
	"fsanano/foodshare/internal/logging"
	"fsanano/foodshare/internal/repository"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg, err := config.Load()
	log := logging.New("info", "development")
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	log = logging.New(cfg.LogLevel, cfg.AppEnv)
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner := repository.NewMigrator(cfg.DatabaseURL)

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.WithField("command", *command).Fatal("Unsupported command")
	}
	if err != nil {
		log.WithError(err).WithField("command", *command).Fatal("Migration command failed")
	}

	log.WithField("command", *command).Info("Migration command completed")
}
