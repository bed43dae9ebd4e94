package firebase

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"lifelink_backend/internal/config"
)

// FirebaseService wraps the Firebase Admin SDK: identity verification and
// access to the Firestore database of the same project.
type FirebaseService struct {
	app        *firebase.App
	authClient *auth.Client
	logger     *zap.Logger
}

// NewFirebaseService initializes the Firebase Admin SDK and creates a new FirebaseService.
func NewFirebaseService(cfg *config.Config, logger *zap.Logger) (*FirebaseService, error) {
	if cfg.FirebaseServiceAccountKeyPath == "" {
		logger.Error("Firebase service account key path is not configured.")
		return nil, fmt.Errorf("firebase service account key path is required")
	}

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(cleanPath)

	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	// A nil config lets the SDK infer the project from the credentials.
	app, err := firebase.NewApp(context.Background(), conf, opt)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return &FirebaseService{
		app:        app,
		authClient: authClient,
		logger:     logger.Named("firebase"),
	}, nil
}

// VerifyIDToken verifies a Firebase ID token and returns the token claims.
func (s *FirebaseService) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}

	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}

	s.logger.Debug("Firebase ID token verified successfully", zap.String("uid", token.UID))
	return token, nil
}

// LookupUIDByEmail resolves the identity registered under email.
func (s *FirebaseService) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	rec, err := s.authClient.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", email, err)
	}
	return rec.UID, nil
}

// Firestore opens a client for the project's default database. The caller
// owns the client and must close it.
func (s *FirebaseService) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := s.app.Firestore(ctx)
	if err != nil {
		s.logger.Error("Failed to get Firestore client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}
	return client, nil
}
