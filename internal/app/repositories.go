package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/point-farm/internal/config"
	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	repocache "github.com/riskibarqy/point-farm/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/point-farm/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/point-farm/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/point-farm/internal/platform/cache"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

type repositories struct {
	ledger    ledger.Repository
	affiliate affiliate.Repository
	results   result.Repository
	db        *sqlx.DB
}

// Affiliate posts only live as long as the session, so they stay in memory
// even when the archive database is enabled.
func newRepositories(cfg config.Config, logger *logging.Logger) (repositories, error) {
	repos := repositories{affiliate: memory.NewAffiliateRepository()}
	if !cfg.DBEnabled {
		repos.ledger = memory.NewLedgerRepository()
		repos.results = memory.NewResultRepository()
		logger.Info("archive database disabled, using memory repositories")
		return repos, nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return repositories{}, err
	}
	repos.db = db
	repos.ledger = postgres.NewLedgerRepository(db)
	repos.results = repocache.NewResultRepository(
		postgres.NewResultRepository(db),
		cache.NewStore[[]result.Standing](cfg.CacheTTL),
	)
	logger.Info("archive database enabled", "db_name", dbNameFromURL(cfg.DBURL))
	return repos, nil
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	return db, nil
}

func (r repositories) close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
