// Package storage selects and instruments the quote store backend.
package storage

import (
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotes-api/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quotes-api/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// Open creates the store named by cfg.Driver and wraps it with tracing,
// metrics and trace-level logging.
func Open(cfg *config.StoreConfig, logger *slog.Logger) (ports.QuoteRepository, error) {
	var (
		repo ports.QuoteRepository
		err  error
	)

	switch cfg.Driver {
	case config.StoreDriverMemory, "":
		repo = memory.New()
	case config.StoreDriverSQLite:
		repo, err = sqlite.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	logger.Info("quote store ready", slog.String("driver", cfg.Driver))

	return Instrument(repo, logger), nil
}
