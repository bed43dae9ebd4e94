// File: internal/middleware/auth.go
package middleware

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/user"
)

// TokenVerifier checks an identity provider ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// ProfileLoader returns the profile of an authenticated identity, creating it
// on first sight.
type ProfileLoader interface {
	EnsureProfile(ctx context.Context, id user.Identity) (*domain.User, error)
}

func claimString(token *auth.Token, key string) string {
	if v, ok := token.Claims[key].(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware creates a Gin middleware for Firebase ID-token
// authentication. The caller's profile is loaded (or bootstrapped) so that
// downstream handlers see the stored role.
func AuthMiddleware(verifier TokenVerifier, profiles ProfileLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(common.AuthorizationHeader) == "" {
			logger.Debug("Authorization header missing")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}
		idToken := common.GetTokenFromContext(c)
		if idToken == "" {
			logger.Debug("Authorization header format invalid")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			logger.Warn("Token validation failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired ID token."))
			return
		}

		id := user.Identity{
			UID:   token.UID,
			Email: claimString(token, "email"),
			Name:  claimString(token, "name"),
		}
		profile, err := profiles.EnsureProfile(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to load profile for authenticated user", zap.String("uid", id.UID), zap.Error(err))
			common.RespondWithError(c, err)
			return
		}

		c.Set(common.UserIDKey, id.UID)
		c.Set(common.UserEmailKey, id.Email)
		c.Set(common.UserRoleKey, string(profile.Role))

		logger.Debug("User authenticated successfully",
			zap.String("userID", id.UID),
			zap.String("role", string(profile.Role)),
		)
		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware to check if the authenticated user has one of the required roles.
func RoleAuthMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := domain.Role(common.GetUserRoleFromContext(c))
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}
