// Package domain provides domain types for the facade service.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// PageSize is the number of articles requested per feed page.
const PageSize = 10

var (
	// ErrEmptySelector is returned for a selector with no value.
	ErrEmptySelector = errors.New("feed selector is empty")
	// ErrInvalidPage is returned for a negative page number.
	ErrInvalidPage = errors.New("page number must not be negative")
)

// Selector identifies which article feed to request.
// Any value other than SelectorFeed and SelectorGlobal names a tag.
type Selector string

const (
	// SelectorFeed is the personalized feed of followed authors.
	SelectorFeed Selector = "feed"
	// SelectorGlobal is the unfiltered article listing.
	SelectorGlobal Selector = "global"
)

// ParseSelector validates a raw selector value.
func ParseSelector(raw string) (Selector, error) {
	if raw == "" {
		return "", ErrEmptySelector
	}
	return Selector(raw), nil
}

// IsTag reports whether the selector filters by tag.
func (s Selector) IsTag() bool {
	return s != SelectorFeed && s != SelectorGlobal
}

// Kind returns "feed", "global" or "tag". Used as a low-cardinality label.
func (s Selector) Kind() string {
	if s.IsTag() {
		return "tag"
	}
	return string(s)
}

func (s Selector) String() string {
	return string(s)
}

// MaxPage is the largest page whose offset fits in an int.
const MaxPage = math.MaxInt / PageSize

// FeedKey is the fingerprint a cached feed result belongs to.
type FeedKey struct {
	Selector Selector
	Page     int
}

// Validate checks the key before any request is built from it.
func (k FeedKey) Validate() error {
	if k.Selector == "" {
		return ErrEmptySelector
	}
	if k.Page < 0 || k.Page > MaxPage {
		return fmt.Errorf("%w: %d", ErrInvalidPage, k.Page)
	}
	return nil
}

// Offset returns the article offset of the page.
func (k FeedKey) Offset() int {
	return k.Page * PageSize
}

func (k FeedKey) String() string {
	return fmt.Sprintf("%s:%d", k.Selector, k.Page)
}

// Article is an article record exactly as returned by the API.
type Article = json.RawMessage

// FeedResult is one page of a feed. It is never mutated after construction.
type FeedResult struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"articlesCount"`
}

// LoadState is the lifecycle state of a feed loader.
type LoadState int

const (
	// LoadStateEmpty means nothing is cached and nothing is in flight.
	LoadStateEmpty LoadState = iota
	// LoadStatePending means a fetch for the current key is outstanding.
	LoadStatePending
	// LoadStateLoaded means a result for the current key is cached.
	LoadStateLoaded
)

// String returns the string representation of the load state.
func (s LoadState) String() string {
	switch s {
	case LoadStateEmpty:
		return "EMPTY"
	case LoadStatePending:
		return "PENDING"
	case LoadStateLoaded:
		return "LOADED"
	default:
		return "UNKNOWN"
	}
}
