// File: internal/search/handler.go
package search

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
)

// Handler serves the admin user directory.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new directory handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("search_handler")}
}

// RegisterRoutes mounts GET /admin/users.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	router.GET("/admin/users", authMW, adminMW, h.searchUsers)
}

func (h *Handler) searchUsers(c *gin.Context) {
	var q Query
	if err := c.ShouldBindQuery(&q); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}
	docs, pagination, err := h.service.SearchUsers(c.Request.Context(), q)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Users retrieved successfully.", docs, pagination)
}
