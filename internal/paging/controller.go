// Package paging implements the paginated-fetch-and-merge view state shared
// by the playlists, playlist videos and search views.
//
// A Controller owns one view: an ordered item list, a loading flag, a
// continuation token and an optional search query. The first page replaces
// the list, "load more" appends, and a query replaces the list with
// unpaginated filtered results.
//
// Every fetch is tagged with a generation. Load and SetQuery bump the
// generation and cancel the fetch they supersede, so a slow response can
// never overwrite the state produced by a newer request.
package paging

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Precondition errors. Fetch failures are never returned; they are logged
// and surface as State.LastError.
var (
	ErrNoScope         = errors.New("paging: view has no scope")
	ErrNoMorePages     = errors.New("paging: no more pages")
	ErrQueryActive     = errors.New("paging: search results are not paginated")
	ErrFetchInProgress = errors.New("paging: fetch already in progress")
)

// Fetch kinds, used in logs and metrics.
const (
	KindLoad   = "load"
	KindMore   = "more"
	KindSearch = "search"
)

// Scope identifies what a view shows: whose data (Identity) and, for
// nested views, which parent (e.g. a playlist id).
type Scope struct {
	Identity string `json:"identity"`
	Parent   string `json:"parent,omitempty"`
}

// Page is one page of source results. An empty NextPageToken ends the
// sequence.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}

// Source supplies pages and filtered results for a view.
type Source[T any] interface {
	FetchPage(ctx context.Context, scope Scope, pageToken string) (Page[T], error)
	Search(ctx context.Context, scope Scope, query string) ([]T, error)
}

// SourceFuncs adapts a pair of functions to Source.
type SourceFuncs[T any] struct {
	FetchPageFunc func(ctx context.Context, scope Scope, pageToken string) (Page[T], error)
	SearchFunc    func(ctx context.Context, scope Scope, query string) ([]T, error)
}

// FetchPage calls FetchPageFunc.
func (f SourceFuncs[T]) FetchPage(ctx context.Context, scope Scope, pageToken string) (Page[T], error) {
	return f.FetchPageFunc(ctx, scope, pageToken)
}

// Search calls SearchFunc, or returns no results when it is nil.
func (f SourceFuncs[T]) Search(ctx context.Context, scope Scope, query string) ([]T, error) {
	if f.SearchFunc == nil {
		return []T{}, nil
	}
	return f.SearchFunc(ctx, scope, query)
}

// Recorder receives one call per completed fetch. outcome is "ok",
// "error", "canceled" or "stale".
type Recorder interface {
	ViewFetch(view, kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ViewFetch(string, string, string) {}

// Option configures a Controller.
type Option func(*options)

type options struct {
	recorder Recorder
}

// WithRecorder reports fetch outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// State is a snapshot of a view.
type State[T any] struct {
	Items         []T    `json:"items"`
	Loading       bool   `json:"loading"`
	NextPageToken string `json:"next_page_token,omitempty"`
	Query         string `json:"query,omitempty"`
	Scope         Scope  `json:"scope"`
	// Loaded is true once a fetch for the current scope has succeeded.
	Loaded bool `json:"loaded"`
	// LastError is the most recent fetch failure, cleared by the next
	// successful fetch.
	LastError string `json:"last_error,omitempty"`
}

// HasMore reports whether "load more" is available.
func (s State[T]) HasMore() bool {
	return s.NextPageToken != "" && s.Query == ""
}

// Searching reports whether a query is active.
func (s State[T]) Searching() bool {
	return s.Query != ""
}

// Controller is a concurrency-safe paged view. Fetches run outside the
// lock; only one is current at a time.
type Controller[T any] struct {
	name     string
	source   Source[T]
	logger   *zap.Logger
	recorder Recorder

	mu     sync.Mutex
	state  State[T]
	gen    uint64
	cancel context.CancelFunc
}

// New creates an empty Controller. name labels logs and metrics.
func New[T any](name string, source Source[T], logger *zap.Logger, opts ...Option) *Controller[T] {
	o := options{recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[T]{
		name:     name,
		source:   source,
		logger:   logger.With(zap.String("view", name)),
		recorder: o.recorder,
	}
}

// State returns a snapshot. The item slice is a copy.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Items = make([]T, len(c.state.Items))
	copy(s.Items, c.state.Items)
	return s
}

// Mount loads the first page unless the view already holds (or is
// fetching) data for scope.
func (c *Controller[T]) Mount(ctx context.Context, scope Scope) error {
	c.mu.Lock()
	fresh := c.state.Scope == scope && (c.state.Loaded || c.state.Loading)
	c.mu.Unlock()
	if fresh {
		return nil
	}
	return c.Load(ctx, scope)
}

// Load fetches the first unfiltered page for scope and replaces the items.
// A new scope or an active query clears the items before the fetch starts.
func (c *Controller[T]) Load(ctx context.Context, scope Scope) error {
	if scope.Identity == "" {
		return ErrNoScope
	}

	c.mu.Lock()
	if c.state.Scope != scope {
		c.resetLocked()
		c.state.Scope = scope
	}
	if c.state.Query != "" {
		c.clearItemsLocked()
		c.state.Query = ""
	}
	gen, fctx := c.beginLocked(ctx)
	c.mu.Unlock()

	page, err := c.source.FetchPage(fctx, scope, "")
	c.finish(gen, KindLoad, err, func(s *State[T]) {
		s.Items = page.Items
		s.NextPageToken = page.NextPageToken
		s.Loaded = true
	})
	return nil
}

// LoadMore fetches the page after the stored continuation token and
// appends it.
func (c *Controller[T]) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state.Scope.Identity == "":
		c.mu.Unlock()
		return ErrNoScope
	case c.state.Loading:
		c.mu.Unlock()
		return ErrFetchInProgress
	case c.state.Query != "":
		c.mu.Unlock()
		return ErrQueryActive
	case c.state.NextPageToken == "":
		c.mu.Unlock()
		return ErrNoMorePages
	}
	scope, token := c.state.Scope, c.state.NextPageToken
	gen, fctx := c.beginLocked(ctx)
	c.mu.Unlock()

	page, err := c.source.FetchPage(fctx, scope, token)
	c.finish(gen, KindMore, err, func(s *State[T]) {
		s.Items = append(s.Items, page.Items...)
		s.NextPageToken = page.NextPageToken
	})
	return nil
}

// SetQuery applies a search query. An empty (or blank) query reverts to
// the first unfiltered page. A non-empty query replaces the items with
// the filtered results and drops the continuation token.
func (c *Controller[T]) SetQuery(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	scope := c.state.Scope
	if scope.Identity == "" {
		c.mu.Unlock()
		return ErrNoScope
	}
	if query == "" {
		c.mu.Unlock()
		return c.Load(ctx, scope)
	}

	if query != c.state.Query {
		c.clearItemsLocked()
	}
	c.state.Query = query
	c.state.NextPageToken = ""
	gen, fctx := c.beginLocked(ctx)
	c.mu.Unlock()

	items, err := c.source.Search(fctx, scope, query)
	c.finish(gen, KindSearch, err, func(s *State[T]) {
		s.Items = items
		s.NextPageToken = ""
		s.Loaded = true
	})
	return nil
}

// Close cancels any in-flight fetch and discards its result.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state.Loading = false
}

func (c *Controller[T]) resetLocked() {
	c.clearItemsLocked()
	c.state.Query = ""
	c.state.Loaded = false
	c.state.LastError = ""
}

func (c *Controller[T]) clearItemsLocked() {
	c.state.Items = nil
	c.state.NextPageToken = ""
}

// beginLocked supersedes the current fetch and starts a new generation.
func (c *Controller[T]) beginLocked(ctx context.Context) (uint64, context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	fctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Loading = true
	return c.gen, fctx
}

// finish applies a fetch result if its generation is still current.
func (c *Controller[T]) finish(gen uint64, kind string, err error, apply func(*State[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.recorder.ViewFetch(c.name, kind, "stale")
		c.logger.Debug("discarding stale response", zap.String("kind", kind), zap.Uint64("generation", gen))
		return
	}

	c.cancel()
	c.cancel = nil
	c.state.Loading = false

	switch {
	case err == nil:
		apply(&c.state)
		if c.state.Items == nil {
			c.state.Items = []T{}
		}
		c.state.LastError = ""
		c.recorder.ViewFetch(c.name, kind, "ok")
	case errors.Is(err, context.Canceled):
		c.recorder.ViewFetch(c.name, kind, "canceled")
		c.logger.Debug("fetch canceled", zap.String("kind", kind))
	default:
		c.state.LastError = err.Error()
		c.recorder.ViewFetch(c.name, kind, "error")
		c.logger.Warn("fetch failed", zap.String("kind", kind), zap.Error(err))
	}
}
