package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadqual/internal/capture"
	"github.com/sells-group/leadqual/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadqual.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newSession(context.Context) (capture.Session, error) {
	return capture.NewChromeSession(capture.SessionOptions{
		Headless:    cfg.Capture.Headless,
		UserAgent:   cfg.Capture.UserAgent,
		LoadTimeout: cfg.Capture.LoadTimeout(),
		ExecPath:    cfg.Capture.ChromePath,
	})
}
