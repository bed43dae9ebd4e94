// File: cmd/server/providers.go
package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"lifelink_backend/internal/app"
	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/coordination"
	"lifelink_backend/internal/feed"
	"lifelink_backend/internal/firebase"
	"lifelink_backend/internal/platform/database"
	"lifelink_backend/internal/search"
	"lifelink_backend/internal/store"
	"lifelink_backend/internal/store/firestoredb"
	"lifelink_backend/internal/store/gormstore"
	"lifelink_backend/internal/user"
)

// Application is everything a command needs once the graph is built.
type Application struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	Server   *app.Server
	Engine   *coordination.Engine
	Search   *search.Service
	Firebase *firebase.FirebaseService
}

func newApplication(
	cfg *config.Config,
	logger *zap.Logger,
	server *app.Server,
	engine *coordination.Engine,
	searchService *search.Service,
	fb *firebase.FirebaseService,
) *Application {
	return &Application{
		Cfg:      cfg,
		Logger:   logger,
		Server:   server,
		Engine:   engine,
		Search:   searchService,
		Firebase: fb,
	}
}

// provideStore opens the backend named by STORE_BACKEND. The cleanup closes
// it and flushes the logger.
func provideStore(cfg *config.Config, logger *zap.Logger, fb *firebase.FirebaseService) (store.Store, func(), error) {
	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fs, err := fb.Firestore(context.Background())
		if err != nil {
			return nil, nil, err
		}
		st = firestoredb.New(fs, cfg, logger)
	case config.StorePostgres, config.StoreSQLite:
		db, err := database.NewGORM(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := gormstore.Migrate(db); err != nil {
			database.CloseGORMDB(db, logger)
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		st = gormstore.New(db, changefeed.NewBroker(logger), cfg, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	cleanup := func() {
		logger.Info("Executing cleanup tasks...")
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
		if err := logger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}
	return st, cleanup, nil
}

func provideUserRepository(st store.Store) user.Repository { return st }

func provideFeedSource(st store.Store) feed.Source { return st }

func provideUserLister(st store.Store) search.UserLister { return st }
