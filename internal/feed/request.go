// Package feed loads paginated article feeds from the Conduit API.
package feed

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"conduit-facade/internal/domain"
)

// Getter performs a GET against the API and returns the body of a 2xx response.
// An empty token means the request is sent without an Authorization header.
type Getter interface {
	Get(ctx context.Context, requestURI, token string) ([]byte, error)
}

// RequestURI builds the API request URI for a feed page.
//
//	feed   -> /articles/feed?limit=10&offset=N
//	global -> /articles/?limit=10&offset=N
//	<tag>  -> /articles/?tag=<tag>&limit=10&offset=N
func RequestURI(key domain.FeedKey) string {
	var b strings.Builder

	switch key.Selector {
	case domain.SelectorFeed:
		b.WriteString("/articles/feed?")
	case domain.SelectorGlobal:
		b.WriteString("/articles/?")
	default:
		b.WriteString("/articles/?tag=")
		b.WriteString(url.QueryEscape(key.Selector.String()))
		b.WriteByte('&')
	}

	b.WriteString("limit=")
	b.WriteString(strconv.Itoa(domain.PageSize))
	b.WriteString("&offset=")
	b.WriteString(strconv.Itoa(key.Offset()))
	return b.String()
}
