// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"lifelink_backend/internal/app"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/coordination"
	"lifelink_backend/internal/feed"
	"lifelink_backend/internal/firebase"
	"lifelink_backend/internal/jobs"
	"lifelink_backend/internal/middleware"
	platformes "lifelink_backend/internal/platform/elasticsearch"
	"lifelink_backend/internal/platform/logger"
	"lifelink_backend/internal/search"
	"lifelink_backend/internal/user"
)

// initializeApplication is the main Wire injector.
func initializeApplication(cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		firebase.NewFirebaseService,
		provideStore,
		platformes.NewClient,

		// Directory search
		provideUserLister,
		search.NewService,
		search.NewHandler,
		wire.Bind(new(user.Indexer), new(*search.Service)),

		// Profiles
		provideUserRepository,
		user.NewService,
		user.NewHandler,
		wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
		wire.Bind(new(middleware.ProfileLoader), new(*user.ServiceImplementation)),
		wire.Bind(new(middleware.TokenVerifier), new(*firebase.FirebaseService)),

		// Coordination
		coordination.NewEngine,
		coordination.NewHandler,
		provideFeedSource,
		feed.NewService,
		feed.NewHandler,
		jobs.NewRequestExpiryJob,
		wire.Bind(new(jobs.Expirer), new(*coordination.Engine)),

		// Application Layer
		app.NewServer,
		newApplication,
	)
	return nil, nil, nil
}
