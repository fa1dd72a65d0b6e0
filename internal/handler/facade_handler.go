package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"conduit-facade/internal/cache"
	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
	"conduit-facade/internal/middleware"
	"conduit-facade/internal/session"
	"conduit-facade/internal/view"
)

var errBadInput = errors.New("invalid request")

// TagSource provides the popular tag list.
type TagSource interface {
	Tags(ctx context.Context) ([]string, error)
}

// FacadeHandler serves the view-model endpoints the SPA calls.
type FacadeHandler struct {
	homes        *cache.HomeRegistry
	tags         TagSource
	sessions     *session.Manager
	logger       *slog.Logger
	secureCookie bool
}

// NewFacadeHandler creates the handler.
func NewFacadeHandler(homes *cache.HomeRegistry, tags TagSource, sessions *session.Manager, logger *slog.Logger, secureCookie bool) *FacadeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FacadeHandler{
		homes:        homes,
		tags:         tags,
		sessions:     sessions,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Register mounts the routes under g.
func (h *FacadeHandler) Register(g *echo.Group) {
	g.GET("/header", h.Header)
	g.GET("/home", h.Home)
	g.POST("/home/page", h.SetPage)
	g.GET("/tags", h.Tags)
	g.GET("/bootstrap", h.Bootstrap)
	g.POST("/session", h.Login)
	g.DELETE("/session", h.Logout)
}

// Header returns the header props for ?route=.
func (h *FacadeHandler) Header(c echo.Context) error {
	s, err := domain.GetSession(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view.HeaderProperties(domain.NewAppState(s, c.QueryParam("route"))))
}

// Home renders the home view for ?feed=&page=&wait=.
func (h *FacadeHandler) Home(c echo.Context) error {
	s, err := domain.GetSession(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	q, err := parseHomeQuery(c)
	if err != nil {
		return h.fail(c, err)
	}

	model, err := h.renderHome(c, s, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, homeResponse(model, middleware.GetRequestID(c)))
}

type pageRequest struct {
	Feed string `json:"feed"`
	Page int    `json:"page"`
}

// SetPage moves the session's home for a feed to another page and drops its cached articles.
func (h *FacadeHandler) SetPage(c echo.Context) error {
	s, err := domain.GetSession(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}

	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", errBadInput, err))
	}
	selector, err := parseFeedParam(req.Feed)
	if err != nil {
		return h.fail(c, err)
	}

	home := h.homes.Get(s.ID, selector)
	if err := home.SetPage(req.Page); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"feed": selector.String(), "page": home.Page()})
}

// Tags returns the popular tags.
func (h *FacadeHandler) Tags(c echo.Context) error {
	tags, err := h.tags.Tags(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"tags": tags})
}

type loginRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login stores the user's API token on the session.
func (h *FacadeHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := domain.GetSession(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", errBadInput, err))
	}

	updated, err := h.sessions.Login(ctx, s, req.Token, req.Username)
	if err != nil {
		return h.fail(c, err)
	}
	// views cached for the anonymous user are stale now
	h.homes.RemoveSession(s.ID)
	middleware.SetSessionCookie(c, updated, h.secureCookie)

	return c.JSON(http.StatusOK, view.HeaderProperties(domain.NewAppState(updated, "")))
}

// Logout ends the session.
func (h *FacadeHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := domain.GetSession(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.sessions.Logout(ctx, s); err != nil {
		return h.fail(c, err)
	}
	h.homes.RemoveSession(s.ID)
	middleware.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

type homeQuery struct {
	selector domain.Selector
	page     *int
	wait     bool
}

func parseHomeQuery(c echo.Context) (homeQuery, error) {
	selector, err := parseFeedParam(c.QueryParam("feed"))
	if err != nil {
		return homeQuery{}, err
	}
	q := homeQuery{selector: selector}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return homeQuery{}, fmt.Errorf("%w: page %q", domain.ErrInvalidPage, raw)
		}
		if page < 0 || page > domain.MaxPage {
			return homeQuery{}, fmt.Errorf("%w: %d", domain.ErrInvalidPage, page)
		}
		q.page = &page
	}

	if raw := c.QueryParam("wait"); raw != "" {
		wait, err := strconv.ParseBool(raw)
		if err != nil {
			return homeQuery{}, fmt.Errorf("%w: wait %q", errBadInput, raw)
		}
		q.wait = wait
	}
	return q, nil
}

func parseFeedParam(raw string) (domain.Selector, error) {
	if raw == "" {
		return domain.SelectorGlobal, nil
	}
	return domain.ParseSelector(raw)
}

func (h *FacadeHandler) renderHome(c echo.Context, s *domain.Session, q homeQuery) (*view.HomeModel, error) {
	home := h.homes.Get(s.ID, q.selector)
	if q.page != nil && *q.page != home.Page() {
		if err := home.SetPage(*q.page); err != nil {
			return nil, err
		}
	}
	props := view.HeaderProperties(domain.NewAppState(s, "home"))
	return home.Render(c.Request().Context(), props, s.Token, q.wait)
}

// HomeResponse is the JSON body of the home endpoint.
type HomeResponse struct {
	*view.HomeModel
	Error *NormalizedError `json:"error,omitempty"`
}

func homeResponse(model *view.HomeModel, requestID string) HomeResponse {
	resp := HomeResponse{HomeModel: model}
	if model.Err != nil {
		resp.Error, _ = NormalizeError(model.Err, requestID)
	}
	return resp
}

func (h *FacadeHandler) fail(c echo.Context, err error) error {
	requestID := middleware.GetRequestID(c)
	normalized, status := NormalizeError(err, requestID)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	if errors.Is(err, feed.ErrFetchFailed) {
		// the loader already logged the upstream failure
		level = slog.LevelDebug
	}
	h.logger.Log(c.Request().Context(), level, "request failed",
		"path", c.Path(),
		"status", status,
		"code", normalized.Code,
		"error", err)

	return c.JSON(status, normalized)
}
