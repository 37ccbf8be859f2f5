package forum

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/apperr"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/posts", auth.RequireActor())

	g.GET("", h.ListPosts)
	g.POST("", h.CreatePost)
	g.GET("/:id", h.GetPost)
	g.DELETE("/:id", h.DeletePost)
	g.PUT("/:id/reactions", h.TogglePostReaction)

	g.POST("/:id/replies", h.CreateReply)
	g.DELETE("/:id/replies/:replyID", h.DeleteReply)
	g.PUT("/:id/replies/:replyID/reactions", h.ToggleReplyReaction)
}

type replyRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func actorOf(c echo.Context) *auth.Actor {
	return auth.ActorFromContext(c.Request().Context())
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) ListPosts(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPosts(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	actor := actorOf(c)
	views := make([]*PostView, len(items))
	for i, p := range items {
		views[i] = View(actor, p)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg, c.Request().URL.Path))
}

func (h *Handler) GetPost(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPost(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, View(actorOf(c), p))
}

func (h *Handler) CreatePost(c echo.Context) error {
	var in PostInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddPost(c.Request().Context(), actorOf(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) DeletePost(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePost(c.Request().Context(), actorOf(c), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateReply(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req replyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rp, err := h.svc.AddReply(c.Request().Context(), actorOf(c), id, req.Content)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rp)
}

func (h *Handler) DeleteReply(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	replyID, err := uuidParam(c, "replyID")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReply(c.Request().Context(), actorOf(c), id, replyID); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) TogglePostReaction(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reactions, err := h.svc.TogglePostReaction(c.Request().Context(), actorOf(c), id, req.Emoji)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, reactions)
}

func (h *Handler) ToggleReplyReaction(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	replyID, err := uuidParam(c, "replyID")
	if err != nil {
		return err
	}
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reactions, err := h.svc.ToggleReplyReaction(c.Request().Context(), actorOf(c), id, replyID, req.Emoji)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, reactions)
}
