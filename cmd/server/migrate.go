package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hkco-server/internal/config"
	"hkco-server/internal/db"
	"hkco-server/internal/migrate"
)

// runMigrate applies journal migrations and exits, for deploys that migrate
// before starting the server.
func runMigrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	conn, err := db.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, conn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("no pending migrations")
		return nil
	}
	fmt.Printf("migrations applied: %s\n", strings.Join(applied, ", "))
	return nil
}
