// File: internal/coordination/handler.go
package coordination

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
)

// Handler exposes the request lifecycle over HTTP.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new coordination handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger.Named("coordination_handler")}
}

// RegisterRoutes mounts the lifecycle routes. Every route needs an
// authenticated caller; fulfillment, pickup verification and stock edits
// also need the admin role.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	requests := router.Group("/requests", authMW)
	{
		requests.POST("", h.broadcast)
		requests.POST("/:id/accept", h.accept)
		requests.POST("/:id/complete", h.complete)
		requests.POST("/:id/cancel", h.cancel)
		requests.PUT("/:id/live-location", h.liveLocation)
		requests.POST("/:id/messages", h.sendMessage)
		requests.POST("/:id/fulfill", adminMW, h.fulfill)
		requests.POST("/:id/verify-pickup", adminMW, h.verifyPickup)
	}

	me := router.Group("/users/me", authMW)
	{
		me.PUT("/role", h.assignRole)
		me.PUT("/availability", h.availability)
	}

	router.PUT("/admin/stock/:group", authMW, adminMW, h.setStock)
}

func (h *Handler) broadcast(c *gin.Context) {
	var in BroadcastInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	req, err := h.engine.BroadcastRequest(c.Request.Context(), common.GetUserIDFromContext(c), in)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Request broadcast successfully.", req)
}

func (h *Handler) accept(c *gin.Context) {
	var in DeclarationInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	req, err := h.engine.AcceptRequest(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c), in.Declaration)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Request accepted.", req)
}

func (h *Handler) complete(c *gin.Context) {
	req, err := h.engine.CompleteRequest(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Donation marked as received.", req)
}

func (h *Handler) cancel(c *gin.Context) {
	req, err := h.engine.CancelRequest(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Request cancelled.", req)
}

func (h *Handler) fulfill(c *gin.Context) {
	var in FulfillInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	req, err := h.engine.FulfillRequestByAdmin(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c), in.BloodGroup)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Blood reserved for pickup.", req)
}

func (h *Handler) verifyPickup(c *gin.Context) {
	var in VerifyPickupInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	req, err := h.engine.VerifyPickupCode(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c), in.Code)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Pickup verified.", req)
}

func (h *Handler) liveLocation(c *gin.Context) {
	var in LocationInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	req, err := h.engine.UpdateLiveLocation(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c),
		domain.GeoPoint{Lat: *in.Lat, Lng: *in.Lng})
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Live location updated.", req.LiveLocation)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var in MessageInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	msg, err := h.engine.SendMessage(c.Request.Context(), c.Param("id"), common.GetUserIDFromContext(c), in)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Message sent.", msg)
}

func (h *Handler) assignRole(c *gin.Context) {
	var in RoleInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	u, err := h.engine.AssignRole(c.Request.Context(), common.GetUserIDFromContext(c), in.Role)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Role updated.", u)
}

func (h *Handler) availability(c *gin.Context) {
	var in AvailabilityInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	u, err := h.engine.ToggleDonorAvailability(c.Request.Context(), common.GetUserIDFromContext(c), *in.Available, in.Declaration)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Availability updated.", u)
}

func (h *Handler) setStock(c *gin.Context) {
	var in StockInput
	if err := common.BindJSON(c, &in); err != nil {
		common.RespondWithError(c, err)
		return
	}
	u, err := h.engine.SetStock(c.Request.Context(), common.GetUserIDFromContext(c), domain.BloodGroup(c.Param("group")), *in.Units)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Stock updated.", u.BloodStock)
}
