package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

type Handler struct {
	router *Router
}

func NewHandler(router *Router) *Handler {
	return &Handler{router: router}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireActor())

	g.POST("/nudges", h.SendNudge)
	g.DELETE("/nudges/:expertID", h.CancelNudge)
	g.POST("/meeting-requests", h.SendMeetingRequest)
	g.DELETE("/meeting-requests/:expertID", h.CancelMeetingRequest)
	g.POST("/meeting-requests/:id/reply", h.ReplyToMeetingRequest, auth.RequireRole(auth.RoleResearcher))

	g.GET("/notifications", h.List)
	g.GET("/notifications/unread-count", h.UnreadCount)
	g.POST("/notifications/mark-read", h.MarkAllRead)
	g.POST("/notifications/:id/read", h.MarkRead)
	g.DELETE("/notifications", h.Clear)
	g.DELETE("/notifications/:id", h.Delete)
}

type expertRequest struct {
	ExpertID   string `json:"expert_id"`
	ExpertName string `json:"expert_name"`
	Reason     string `json:"reason"`
}

type meetingReplyRequest struct {
	Reply string `json:"reply"`
}

func actorOf(c echo.Context) *auth.Actor {
	return auth.ActorFromContext(c.Request().Context())
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func raisedStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (h *Handler) SendNudge(c echo.Context) error {
	var req expertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, created, err := h.router.SendNudge(c.Request().Context(), actorOf(c),
		ExpertRef{ID: req.ExpertID, DisplayName: req.ExpertName})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(raisedStatus(created), n)
}

func (h *Handler) CancelNudge(c echo.Context) error {
	if err := h.router.CancelNudge(c.Request().Context(), actorOf(c), c.Param("expertID")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendMeetingRequest(c echo.Context) error {
	var req expertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, created, err := h.router.SendMeetingRequest(c.Request().Context(), actorOf(c),
		ExpertRef{ID: req.ExpertID, DisplayName: req.ExpertName}, req.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(raisedStatus(created), n)
}

func (h *Handler) CancelMeetingRequest(c echo.Context) error {
	if err := h.router.CancelMeetingRequest(c.Request().Context(), actorOf(c), c.Param("expertID")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReplyToMeetingRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req meetingReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.router.ReplyToMeetingRequest(c.Request().Context(), actorOf(c), id, req.Reply)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) List(c echo.Context) error {
	items, unread, err := h.router.List(c.Request().Context(), actorOf(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   items,
		"unread": unread,
	})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	n, err := h.router.UnreadCount(c.Request().Context(), actorOf(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	n, err := h.router.MarkAllVisibleAsRead(c.Request().Context(), actorOf(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.router.MarkAsRead(c.Request().Context(), actorOf(c), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Clear(c echo.Context) error {
	n, err := h.router.ClearAllVisible(c.Request().Context(), actorOf(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.router.DeleteOne(c.Request().Context(), actorOf(c), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
