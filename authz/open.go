package authz

import (
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"

	"lakeguard/config"
	"lakeguard/internal/cache"
	"lakeguard/internal/db"
	"lakeguard/internal/db/repository"
)

// Open is the composition root: it opens the SQLite privilege store, runs
// migrations, and wires the repositories, cache, and engine together.
// The returned close function stops the cache janitor and closes both
// connection pools.
func Open(cfg *config.Config, logger *slog.Logger) (*AuthorizationService, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, nil, err
	}

	store := repository.NewPrivilegeRepo(writeDB, readDB)
	audit := repository.NewAuditRepo(writeDB, readDB)

	c := cache.New(store, cfg.CacheTTL, cfg.CacheMaxEntries, logger)
	c.StartJanitor(cfg.CacheSweepInterval)

	limiter := rate.NewLimiter(rate.Limit(cfg.TransferRPS), cfg.TransferBurst)
	svc := NewAuthorizationService(store, audit, c, limiter, logger)

	logger.Info("authorization engine ready",
		"db", cfg.DBPath, "cache_ttl", cfg.CacheTTL, "cache_max_entries", cfg.CacheMaxEntries)

	closeFn := func() error {
		c.StopJanitor()
		rerr := readDB.Close()
		werr := writeDB.Close()
		if rerr != nil {
			return rerr
		}
		return werr
	}
	return svc, closeFn, nil
}
