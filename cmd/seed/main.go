package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Domenick1991/slotbooking/config"
	"github.com/Domenick1991/slotbooking/internal/logging"
	"github.com/Domenick1991/slotbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seed creates a user and prints the API token to use as a bearer token.
func main() {
	name := flag.String("name", "", "name of the user to create")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.App.Name+"-seed", cfg.Log.Level)

	if strings.TrimSpace(*name) == "" {
		logger.Error("-name is required")
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			logger.Error("migrate", "err", err)
			os.Exit(1)
		}
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	user, err := repository.NewUserRepository(pool).Create(ctx, *name, token)
	if err != nil {
		logger.Error("create user", "err", err)
		os.Exit(1)
	}

	logger.Info("user created", "user_id", user.ID, "name", user.Name)
	fmt.Println(token)
}
