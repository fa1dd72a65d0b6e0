package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
)

// Tab is one entry of the feed toggle.
type Tab struct {
	Label    string `json:"label"`
	Selector string `json:"feed"`
	Active   bool   `json:"active"`
}

// Pagination describes the page links under a loaded feed.
type Pagination struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	PageCount   int `json:"pageCount"`
}

// HomeModel is the rendered home page.
type HomeModel struct {
	Feed       string           `json:"feed"`
	Page       int              `json:"page"`
	Tabs       []Tab            `json:"tabs"`
	State      string           `json:"state"`
	Loading    bool             `json:"loading"`
	Articles   []domain.Article `json:"articles"`
	Pagination *Pagination      `json:"pagination,omitempty"`
	// Err is the last load failure for the current page, if any.
	Err error `json:"-"`
}

// Home is the home page of one session for one selector. It owns the feed
// loader and the current page number.
type Home struct {
	selector domain.Selector
	loader   *feed.Loader
	logger   *slog.Logger

	mu   sync.Mutex
	page int
}

// NewHome creates a Home starting at page 0.
func NewHome(selector domain.Selector, getter feed.Getter, logger *slog.Logger, opts ...feed.Option) *Home {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]feed.Option{feed.WithLogger(logger)}, opts...)
	return &Home{
		selector: selector,
		loader:   feed.NewLoader(getter, opts...),
		logger:   logger,
	}
}

// Selector returns the feed this Home shows.
func (h *Home) Selector() domain.Selector { return h.selector }

// Page returns the current page number.
func (h *Home) Page() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page
}

// SetPage moves to page and drops the cached articles.
func (h *Home) SetPage(page int) error {
	if page < 0 || page > domain.MaxPage {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPage, page)
	}
	h.mu.Lock()
	h.page = page
	h.mu.Unlock()
	h.loader.Invalidate()
	return nil
}

// Snapshot exposes the loader state.
func (h *Home) Snapshot() feed.Snapshot {
	return h.loader.Snapshot()
}

// Render builds the home model. With wait it blocks until the page is
// loaded and returns the load error, if any. Without wait it reports the
// current state and starts a background load when nothing is loaded or in
// flight for the page. A failed page is reported, not retried; SetPage
// clears the failure.
func (h *Home) Render(ctx context.Context, props HeaderProps, token string, wait bool) (*HomeModel, error) {
	page := h.Page()
	model := &HomeModel{
		Feed:     h.selector.String(),
		Page:     page,
		Tabs:     Tabs(h.selector, props.IsAuthenticated),
		Articles: []domain.Article{},
	}

	if wait {
		result, err := h.loader.Load(ctx, h.selector, page, token)
		if err != nil {
			model.State = domain.LoadStateEmpty.String()
			model.Err = err
			return model, err
		}
		fill(model, result)
		return model, nil
	}

	key := domain.FeedKey{Selector: h.selector, Page: page}
	snap := h.loader.Snapshot()
	current := snap.HasKey && snap.Key == key

	switch {
	case current && snap.State == domain.LoadStateLoaded:
		fill(model, snap.Result)
	case current && snap.State == domain.LoadStatePending:
		model.State = snap.State.String()
		model.Loading = true
	case current && snap.Err != nil:
		model.State = snap.State.String()
		model.Err = snap.Err
	default:
		model.State = domain.LoadStatePending.String()
		model.Loading = true
		h.loadInBackground(ctx, page, token)
	}
	return model, nil
}

func (h *Home) loadInBackground(ctx context.Context, page int, token string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := h.loader.Load(ctx, h.selector, page, token); err != nil {
			h.logger.DebugContext(ctx, "background feed load failed",
				"feed", h.selector.String(), "page", page, "error", err)
		}
	}()
}

func fill(model *HomeModel, result *domain.FeedResult) {
	model.State = domain.LoadStateLoaded.String()
	model.Articles = result.Articles
	model.Pagination = &Pagination{
		Total:       result.Total,
		CurrentPage: model.Page,
		PageCount:   PageCount(result.Total),
	}
}

// PageCount is the number of pages needed for total articles.
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + domain.PageSize - 1) / domain.PageSize
}

// Tabs builds the feed toggle. The personal feed is offered only to
// authenticated users and a tag tab appears only while a tag is selected.
func Tabs(selector domain.Selector, authenticated bool) []Tab {
	tabs := make([]Tab, 0, 3)
	if authenticated {
		tabs = append(tabs, Tab{Label: "Your Feed", Selector: string(domain.SelectorFeed), Active: selector == domain.SelectorFeed})
	}
	tabs = append(tabs, Tab{Label: "Global Feed", Selector: string(domain.SelectorGlobal), Active: selector == domain.SelectorGlobal})
	if selector.IsTag() {
		tabs = append(tabs, Tab{Label: "#" + selector.String(), Selector: selector.String(), Active: true})
	}
	return tabs
}
