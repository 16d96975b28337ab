package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"orderdash/internal/config"
	"orderdash/internal/engine"
)

// Load reads the snapshot described by cfg and derives purchase_month when
// the source does not carry it.
func Load(ctx context.Context, cfg config.DataConfig) (*engine.ColumnStore, error) {
	t0 := time.Now()
	var (
		store *engine.ColumnStore
		err   error
	)
	switch cfg.Format {
	case "", "csv":
		store, err = engine.LoadColumnar(cfg.Path)
	case "parquet":
		store, err = LoadParquet(cfg.Path)
	case "arrow":
		store, err = LoadArrow(cfg.Path)
	case "sql":
		store, err = loadSQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown data format %q", cfg.Format)
	}
	if err != nil {
		return nil, err
	}

	if withMonth, err := store.WithPurchaseMonth(); err == nil {
		store = withMonth
	} else {
		log.Warn().Err(err).Msg("purchase_month not derived")
	}

	log.Info().
		Str("format", cfg.Format).
		Int("rows", store.Len()).
		Dur("took", time.Since(t0)).
		Msg("snapshot loaded")
	return store, nil
}

func loadSQL(ctx context.Context, cfg config.DataConfig) (*engine.ColumnStore, error) {
	db, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return QuerySQL(ctx, db, cfg.Query)
}
