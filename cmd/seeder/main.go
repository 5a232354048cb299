//cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unclebandit/campaign-dispatcher/internal/config"
	"github.com/unclebandit/campaign-dispatcher/internal/db"
	"github.com/unclebandit/campaign-dispatcher/internal/logging"
)

// Order matters: campaigns reference the template pool seeded before them.
var seedFiles = []string{
	"recipients.sql",
	"templates.sql",
	"campaigns.sql",
}

func main() {
	dir := flag.String("dir", "seed", "directory holding the seed SQL files")
	flag.Parse()

	cfg, _, err := config.Load()
	if err != nil {
		boot := logging.New("info", "console")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	sqlDB, err := db.Open(ctx, cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	for _, name := range seedFiles {
		path := filepath.Join(*dir, name)
		if err := seed(ctx, sqlDB, path); err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("seeding failed")
		}
		log.Info().Str("file", path).Msg("seeded")
	}
	log.Info().Msg("database seeding completed successfully")
}

func seed(ctx context.Context, sqlDB *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if _, err := sqlDB.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute %s: %w", path, err)
	}
	return nil
}
