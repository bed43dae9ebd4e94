// File: internal/feed/handler.go
package feed

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

// Handler serves the read models, one-shot as JSON and live as server-sent
// events.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new feed handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("feed_handler")}
}

// RegisterRoutes mounts the feed routes; all of them need an authenticated
// caller.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc) {
	router.GET("/requests/:id", authMW, h.requestDetail)
	router.GET("/requests/:id/messages", authMW, h.messages)

	feed := router.Group("/feed", authMW)
	{
		feed.GET("/requests", h.streamActive)
		feed.GET("/my-requests", h.streamMine)
		feed.GET("/donors", h.streamDonors)
		feed.GET("/requests/:id", h.streamDetail)
		feed.GET("/requests/:id/messages", h.streamMessages)
	}
}

func (h *Handler) requestDetail(c *gin.Context) {
	req, err := h.service.RequestDetail(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", req)
}

func (h *Handler) messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", msgs)
}

// event is one item pushed to an SSE client.
type event struct {
	name string
	data interface{}
}

// sink hands subscription callbacks to the streaming goroutine. When the
// client is slower than the store, only the latest snapshot is kept.
type sink chan event

func newSink() sink {
	return make(sink, 1)
}

func (s sink) push(name string, data interface{}) {
	ev := event{name: name, data: data}
	for {
		select {
		case s <- ev:
			return
		default:
		}
		select {
		case <-s:
		default:
		}
	}
}

func pushResult[T any](s sink) func(T, error) {
	return func(v T, err error) {
		if err != nil {
			s.push("error", errorPayload(err))
			return
		}
		s.push("snapshot", v)
	}
}

func errorPayload(err error) interface{} {
	if apiErr, ok := common.IsAPIError(err); ok {
		return apiErr
	}
	return common.ErrInternalServer
}

// stream relays events until the client goes away, then unsubscribes.
func (h *Handler) stream(c *gin.Context, s sink, unsub store.Unsubscribe) {
	defer unsub()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-s:
			c.SSEvent(ev.name, ev.data)
			return true
		}
	})
	h.logger.Debug("Stream closed", zap.String("path", c.FullPath()), zap.String("userID", common.GetUserIDFromContext(c)))
}

func (h *Handler) streamActive(c *gin.Context) {
	s := newSink()
	unsub, err := h.service.WatchActiveRequests(c.Request.Context(), common.GetUserIDFromContext(c), pushResult[[]domain.Request](s))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.stream(c, s, unsub)
}

func (h *Handler) streamMine(c *gin.Context) {
	s := newSink()
	unsub, err := h.service.WatchMyRequests(c.Request.Context(), common.GetUserIDFromContext(c), pushResult[[]domain.Request](s))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.stream(c, s, unsub)
}

func (h *Handler) streamDetail(c *gin.Context) {
	s := newSink()
	unsub, err := h.service.WatchRequestDetail(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"), pushResult[*domain.Request](s))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.stream(c, s, unsub)
}

func (h *Handler) streamMessages(c *gin.Context) {
	s := newSink()
	unsub, err := h.service.WatchMessages(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"), pushResult[[]domain.Message](s))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.stream(c, s, unsub)
}

// streamDonors serves the nearby-donors feed. The client passes the position
// it resolved as lat and lng; without them the default location is used. An
// optional group narrows the list to compatible donors.
func (h *Handler) streamDonors(c *gin.Context) {
	s := newSink()
	f := h.service.NewDonorFeed(c.Request.Context(), common.GetUserIDFromContext(c), pushResult[DonorSnapshot](s))

	if g := domain.BloodGroup(c.Query("group")); g != "" {
		if g != domain.BloodGroupAny && !g.Valid() {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Unknown blood group."))
			return
		}
		f.SetFilter(g)
	}

	f.Locate()
	if err := f.Resolve(queryPoint(c)); err != nil {
		f.Close()
		common.RespondWithError(c, err)
		return
	}
	h.stream(c, s, f.Close)
}

func queryPoint(c *gin.Context) (*domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return nil, err
	}
	return &domain.GeoPoint{Lat: lat, Lng: lng}, nil
}
