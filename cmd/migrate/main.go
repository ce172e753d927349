package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vendorhub/internal/config"
	"vendorhub/internal/db"
	"vendorhub/internal/logging"
)

func main() {
	logger := logging.NewSugaredLogger()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalw("config load failed", "error", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatalw("db connect failed", "error", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		logger.Fatalw("ensure schema table failed", "error", err)
	}

	files, err := listSQLFiles("migrations")
	if err != nil {
		logger.Fatalw("list migrations failed", "error", err)
	}

	for _, file := range files {
		var applied bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename=$1)`, file).Scan(&applied); err != nil {
			logger.Fatalw("check migration failed", "file", file, "error", err)
		}
		if applied {
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			logger.Fatalw("read migration failed", "file", file, "error", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			if _, err := pool.Exec(ctx, string(data)); err != nil {
				logger.Fatalw("apply migration failed", "file", file, "error", err)
			}
		}
		if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			logger.Fatalw("mark migration failed", "file", file, "error", err)
		}
		logger.Infow("applied migration", "file", file)
	}
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
