// Package counter stores per-page view counts keyed by slug.
//
// Every backend delegates the increment to the database's own atomic
// primitive, so concurrent increments for the same slug never lose updates
// and no caller ever computes a new total client-side.
package counter

import (
	"context"
	"errors"
	"sort"
)

// Namespace is the collection/prefix all counters live under.
const Namespace = "views"

var (
	// ErrAlreadyInitialized is returned by Connector.Connect when the
	// process-wide store already exists. The existing store is returned
	// alongside it, so callers may ignore it with errors.Is.
	ErrAlreadyInitialized = errors.New("counter: store already initialized")
	// ErrMissingSlug means the slug was absent or blank.
	ErrMissingSlug = errors.New("counter: missing slug")
	// ErrInvalidSlug means the slug could not be canonicalized.
	ErrInvalidSlug = errors.New("counter: invalid slug")
	// ErrUnknownDriver means Config.Driver names no backend.
	ErrUnknownDriver = errors.New("counter: unknown driver")
	// ErrMissingCredentials means a backend was selected without the
	// settings it needs to connect.
	ErrMissingCredentials = errors.New("counter: missing credentials")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("counter: store closed")
)

// PageViews is one entry of the slug -> count mapping.
type PageViews struct {
	Slug  string `json:"slug"`
	Views int64  `json:"views"`
}

// Store is a handle on the views collection. Slugs passed to it must be
// canonical (see CanonicalSlug).
type Store interface {
	// Increment atomically adds one to the slug's counter, creating it at
	// zero first if needed, and returns the new total.
	Increment(ctx context.Context, slug string) (int64, error)
	// Get returns the slug's counter, 0 if it has never been incremented.
	Get(ctx context.Context, slug string) (int64, error)
	// List returns every counter in no particular order.
	List(ctx context.Context) ([]PageViews, error)
	// Subscribe delivers the slug's total each time it changes until ctx
	// is done, then closes the channel. A slow reader only sees the most
	// recent total.
	Subscribe(ctx context.Context, slug string) (<-chan int64, error)
	Close() error
}

// SortByViews orders pages by views descending, then slug ascending.
func SortByViews(pages []PageViews) {
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Views != pages[j].Views {
			return pages[i].Views > pages[j].Views
		}
		return pages[i].Slug < pages[j].Slug
	})
}

// Total sums the views of all pages.
func Total(pages []PageViews) int64 {
	var n int64
	for _, p := range pages {
		n += p.Views
	}
	return n
}

// offer hands v to a subscriber without blocking, replacing any total the
// reader has not consumed yet.
func offer(ch chan int64, v int64) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
