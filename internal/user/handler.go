// File: internal/user/handler.go
package user

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
)

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("user_handler"),
	}
}

// RegisterRoutes sets up the routes for profile operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	me := router.Group("/users/me", authMW)
	{
		me.GET("", h.getMe)
		me.PATCH("", h.updateMe)
		me.POST("/verification", h.requestVerification)
		me.GET("/eligibility", h.eligibility)
		me.GET("/declaration", h.declaration)
		me.GET("/donations", h.donationsMade)
		me.GET("/received", h.donationsReceived)
	}

	admin := router.Group("/admin/users", authMW, adminMW)
	{
		admin.POST("/:uid/verify", h.verify)
		admin.POST("/:uid/reject", h.reject)
	}

	router.GET("/centers/:slug/stock", h.centerStock)
}

func (h *Handler) getMe(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile retrieved successfully.", profile)
}

func (h *Handler) updateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := common.BindJSON(c, &req); err != nil {
		h.logger.Warn("Profile update: invalid request body", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	u, err := h.service.UpdateProfile(c.Request.Context(), common.GetUserIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile updated successfully.", u)
}

func (h *Handler) requestVerification(c *gin.Context) {
	u, err := h.service.RequestVerification(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Verification requested.", u)
}

func (h *Handler) eligibility(c *gin.Context) {
	e, err := h.service.Eligibility(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", e)
}

func (h *Handler) declaration(c *gin.Context) {
	sections, err := h.service.Declaration(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", sections)
}

func (h *Handler) donationsMade(c *gin.Context) {
	donations, err := h.service.DonationsMade(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", donations)
}

func (h *Handler) donationsReceived(c *gin.Context) {
	reqs, err := h.service.DonationsReceived(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", reqs)
}

func (h *Handler) verify(c *gin.Context) {
	u, err := h.service.VerifyUser(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("uid"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User verified.", u)
}

func (h *Handler) reject(c *gin.Context) {
	u, err := h.service.RejectUser(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("uid"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Verification rejected.", u)
}

func (h *Handler) centerStock(c *gin.Context) {
	stock, err := h.service.CenterStock(c.Request.Context(), c.Param("slug"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", stock)
}
