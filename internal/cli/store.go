package cli

import (
	"context"
	"errors"

	"github.com/vietddude/walletguard/internal/core/config"
	"github.com/vietddude/walletguard/internal/infra/storage"
	badgerstore "github.com/vietddude/walletguard/internal/infra/storage/badger"
	"github.com/vietddude/walletguard/internal/infra/storage/postgres"
)

var errNoStorage = errors.New("no persistent storage configured (database.url or badger.path)")

// openStore opens the configured persistent backend.
func openStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch {
	case cfg.Database.URL != "":
		return postgres.NewDB(ctx, cfg.Database)
	case cfg.Badger.Path != "":
		return badgerstore.Open(cfg.Badger)
	}
	return nil, errNoStorage
}
