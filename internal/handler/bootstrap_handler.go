package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"conduit-facade/internal/domain"
	"conduit-facade/internal/middleware"
	"conduit-facade/internal/view"
)

// BootstrapPart is one section of the bootstrap response: data or an error.
type BootstrapPart[T any] struct {
	Data  T                `json:"data,omitempty"`
	Error *NormalizedError `json:"error,omitempty"`
}

// BootstrapResponse is everything the SPA needs for its first paint.
type BootstrapResponse struct {
	Header BootstrapPart[view.HeaderProps] `json:"header"`
	Home   BootstrapPart[*view.HomeModel]  `json:"home"`
	Tags   BootstrapPart[[]string]         `json:"tags"`
}

// Bootstrap loads the header, the home feed and the tags concurrently.
// A failing part does not fail the others. The home feed waits unless wait=false.
func (h *FacadeHandler) Bootstrap(c echo.Context) error {
	s, err := domain.GetSession(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	q, err := parseHomeQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	if c.QueryParam("wait") == "" {
		q.wait = true
	}

	requestID := middleware.GetRequestID(c)
	ctx := c.Request().Context()
	resp := BootstrapResponse{
		Header: BootstrapPart[view.HeaderProps]{
			Data: view.HeaderProperties(domain.NewAppState(s, c.QueryParam("route"))),
		},
	}

	var g errgroup.Group
	g.Go(func() error {
		model, err := h.renderHome(c, s, q)
		if err != nil {
			resp.Home.Error, _ = NormalizeError(err, requestID)
			return nil
		}
		resp.Home.Data = model
		if model.Err != nil {
			resp.Home.Error, _ = NormalizeError(model.Err, requestID)
		}
		return nil
	})
	g.Go(func() error {
		tags, err := h.tags.Tags(ctx)
		if err != nil {
			resp.Tags.Error, _ = NormalizeError(err, requestID)
			return nil
		}
		resp.Tags.Data = tags
		return nil
	})
	_ = g.Wait()

	return c.JSON(http.StatusOK, resp)
}
