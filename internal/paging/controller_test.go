package paging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	alice = Scope{Identity: "alice"}
	bob   = Scope{Identity: "bob"}
)

// library is an in-memory source: pages keyed by token, search by
// substring over every item.
type library struct {
	mu      sync.Mutex
	pages   map[string]Page[string]
	fail    error
	fetches int
}

func newLibrary() *library {
	return &library{pages: map[string]Page[string]{
		"":   {Items: []string{"alpha", "bravo"}, NextPageToken: "p2"},
		"p2": {Items: []string{"charlie", "delta"}, NextPageToken: "p3"},
		"p3": {Items: []string{"echo"}},
	}}
}

func (l *library) FetchPage(_ context.Context, _ Scope, token string) (Page[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if l.fail != nil {
		return Page[string]{}, l.fail
	}
	return l.pages[token], nil
}

func (l *library) Search(_ context.Context, _ Scope, query string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	var out []string
	for _, p := range l.pages {
		for _, it := range p.Items {
			if strings.Contains(it, query) {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (l *library) setFail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

// gate blocks a fetch until released and reports when it was entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	close(g.entered)
	<-g.release
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ViewFetch(_, kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[kind+"/"+outcome]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func newController(src Source[string], opts ...Option) *Controller[string] {
	return New[string]("test", src, zap.NewNop(), opts...)
}

func TestFirstPageWithoutTokenDisablesLoadMore(t *testing.T) {
	lib := newLibrary()
	lib.pages[""] = Page[string]{Items: []string{"only"}}
	c := newController(lib)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))

	s := c.State()
	assert.Equal(t, []string{"only"}, s.Items)
	assert.False(t, s.HasMore())
	assert.True(t, s.Loaded)
	assert.ErrorIs(t, c.LoadMore(ctx), ErrNoMorePages)
}

func TestLoadMoreAppendsInOrder(t *testing.T) {
	c := newController(newLibrary())
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	require.True(t, c.State().HasMore())

	require.NoError(t, c.LoadMore(ctx))
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, c.State().Items)

	require.NoError(t, c.LoadMore(ctx))
	s := c.State()
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, s.Items)
	assert.False(t, s.HasMore())
}

func TestQueryReplacesItemsAndClearsToken(t *testing.T) {
	c := newController(newLibrary())
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	require.NoError(t, c.LoadMore(ctx))

	require.NoError(t, c.SetQuery(ctx, "  har "))
	s := c.State()
	assert.Equal(t, []string{"charlie"}, s.Items)
	assert.Equal(t, "har", s.Query)
	assert.Empty(t, s.NextPageToken)
	assert.True(t, s.Searching())
	assert.False(t, s.HasMore())

	assert.ErrorIs(t, c.LoadMore(ctx), ErrQueryActive)
}

func TestClearingQueryRestoresFirstPage(t *testing.T) {
	c := newController(newLibrary())
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	require.NoError(t, c.SetQuery(ctx, "echo"))
	require.Equal(t, []string{"echo"}, c.State().Items)

	require.NoError(t, c.SetQuery(ctx, "   "))
	s := c.State()
	assert.Equal(t, []string{"alpha", "bravo"}, s.Items)
	assert.Equal(t, "p2", s.NextPageToken)
	assert.Empty(t, s.Query)
	assert.True(t, s.HasMore())
}

func TestFailedLoadMoreKeepsItems(t *testing.T) {
	lib := newLibrary()
	c := newController(lib)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	lib.setFail(errors.New("quota exceeded"))

	require.NoError(t, c.LoadMore(ctx), "fetch failures are not returned")
	s := c.State()
	assert.Equal(t, []string{"alpha", "bravo"}, s.Items)
	assert.Equal(t, "p2", s.NextPageToken, "token kept so the user can retry")
	assert.False(t, s.Loading)
	assert.Equal(t, "quota exceeded", s.LastError)

	lib.setFail(nil)
	require.NoError(t, c.LoadMore(ctx))
	s = c.State()
	assert.Len(t, s.Items, 4)
	assert.Empty(t, s.LastError, "success clears the error")
}

func TestFailedReloadKeepsItems(t *testing.T) {
	lib := newLibrary()
	c := newController(lib)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	lib.setFail(errors.New("boom"))
	require.NoError(t, c.Load(ctx, alice))

	s := c.State()
	assert.Equal(t, []string{"alpha", "bravo"}, s.Items)
	assert.False(t, s.Loading)
	assert.Equal(t, "boom", s.LastError)
}

func TestFailedSearchKeepsNoToken(t *testing.T) {
	lib := newLibrary()
	c := newController(lib)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	lib.setFail(errors.New("boom"))
	require.NoError(t, c.SetQuery(ctx, "alpha"))

	s := c.State()
	assert.Empty(t, s.NextPageToken)
	assert.Equal(t, "alpha", s.Query)
	assert.Empty(t, s.Items, "query change clears items before the fetch resolves")
	assert.Equal(t, "boom", s.LastError)
}

func TestScopeChangeResetsBeforeFetchResolves(t *testing.T) {
	lib := newLibrary()
	g := newGate()
	src := SourceFuncs[string]{
		FetchPageFunc: func(ctx context.Context, scope Scope, token string) (Page[string], error) {
			if scope == bob {
				g.wait()
				return Page[string]{Items: []string{"bob-1"}}, nil
			}
			return lib.FetchPage(ctx, scope, token)
		},
	}
	c := newController(src)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, alice))
	require.NoError(t, c.SetQuery(ctx, "bravo"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Load(ctx, bob)
	}()
	<-g.entered

	s := c.State()
	assert.Empty(t, s.Items, "items cleared while new identity loads")
	assert.Empty(t, s.NextPageToken)
	assert.Empty(t, s.Query)
	assert.True(t, s.Loading)
	assert.False(t, s.Loaded)
	assert.Equal(t, bob, s.Scope)

	close(g.release)
	<-done
	assert.Equal(t, []string{"bob-1"}, c.State().Items)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	g := newGate()
	src := SourceFuncs[string]{
		FetchPageFunc: func(_ context.Context, _ Scope, _ string) (Page[string], error) {
			g.wait()
			// Ignores cancellation to simulate a response already on the wire.
			return Page[string]{Items: []string{"slow"}, NextPageToken: "next"}, nil
		},
		SearchFunc: func(_ context.Context, _ Scope, q string) ([]string, error) {
			return []string{"fast:" + q}, nil
		},
	}
	rec := &countingRecorder{}
	c := newController(src, WithRecorder(rec))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Load(ctx, alice)
	}()
	<-g.entered

	require.NoError(t, c.SetQuery(ctx, "q"))
	close(g.release)
	<-done

	s := c.State()
	assert.Equal(t, []string{"fast:q"}, s.Items)
	assert.Empty(t, s.NextPageToken)
	assert.False(t, s.Loading)
	assert.Equal(t, 1, rec.get("load/stale"))
	assert.Equal(t, 1, rec.get("search/ok"))
}

func TestSupersededFetchIsCanceled(t *testing.T) {
	canceled := make(chan error, 1)
	entered := make(chan struct{})
	src := SourceFuncs[string]{
		FetchPageFunc: func(ctx context.Context, _ Scope, _ string) (Page[string], error) {
			close(entered)
			<-ctx.Done()
			canceled <- ctx.Err()
			return Page[string]{}, ctx.Err()
		},
		SearchFunc: func(_ context.Context, _ Scope, _ string) ([]string, error) {
			return []string{"hit"}, nil
		},
	}
	c := newController(src)
	ctx := context.Background()

	go func() { _ = c.Load(ctx, alice) }()
	<-entered
	require.NoError(t, c.SetQuery(ctx, "x"))

	assert.ErrorIs(t, <-canceled, context.Canceled)
	assert.Equal(t, []string{"hit"}, c.State().Items)
}

func TestLoadMoreRejectedWhileFetching(t *testing.T) {
	lib := newLibrary()
	g := newGate()
	blocking := false
	var mu sync.Mutex
	src := SourceFuncs[string]{
		FetchPageFunc: func(ctx context.Context, scope Scope, token string) (Page[string], error) {
			mu.Lock()
			b := blocking
			mu.Unlock()
			if b {
				g.wait()
			}
			return lib.FetchPage(ctx, scope, token)
		},
	}
	c := newController(src)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, alice))

	mu.Lock()
	blocking = true
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.LoadMore(ctx)
	}()
	<-g.entered

	assert.ErrorIs(t, c.LoadMore(ctx), ErrFetchInProgress)

	close(g.release)
	<-done
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, c.State().Items)
}

func TestPreconditions(t *testing.T) {
	c := newController(newLibrary())
	ctx := context.Background()

	assert.ErrorIs(t, c.Load(ctx, Scope{}), ErrNoScope)
	assert.ErrorIs(t, c.LoadMore(ctx), ErrNoScope)
	assert.ErrorIs(t, c.SetQuery(ctx, "x"), ErrNoScope)
	assert.ErrorIs(t, c.Mount(ctx, Scope{Parent: "PL1"}), ErrNoScope)
}

func TestMountLoadsOncePerScope(t *testing.T) {
	lib := newLibrary()
	c := newController(lib)
	ctx := context.Background()
	playlist := Scope{Identity: "alice", Parent: "PL1"}

	require.NoError(t, c.Mount(ctx, alice))
	require.NoError(t, c.Mount(ctx, alice))
	assert.Equal(t, 1, lib.fetches)

	require.NoError(t, c.Mount(ctx, playlist))
	assert.Equal(t, 2, lib.fetches, "parent change refetches")
	assert.Equal(t, playlist, c.State().Scope)
}

func TestMountRetriesAfterFailedFirstLoad(t *testing.T) {
	lib := newLibrary()
	lib.setFail(errors.New("down"))
	c := newController(lib)
	ctx := context.Background()

	require.NoError(t, c.Mount(ctx, alice))
	require.False(t, c.State().Loaded)

	lib.setFail(nil)
	require.NoError(t, c.Mount(ctx, alice))
	s := c.State()
	assert.True(t, s.Loaded)
	assert.Equal(t, []string{"alpha", "bravo"}, s.Items)
}

func TestCallerCancellationIsNotAnError(t *testing.T) {
	src := SourceFuncs[string]{
		FetchPageFunc: func(ctx context.Context, _ Scope, _ string) (Page[string], error) {
			return Page[string]{}, ctx.Err()
		},
	}
	c := newController(src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Load(ctx, alice))
	s := c.State()
	assert.False(t, s.Loading)
	assert.Empty(t, s.LastError)
}

func TestStateReturnsCopy(t *testing.T) {
	c := newController(newLibrary())
	require.NoError(t, c.Load(context.Background(), alice))

	s := c.State()
	s.Items[0] = "mutated"
	assert.Equal(t, "alpha", c.State().Items[0])
}

func TestEmptyResultIsEmptySlice(t *testing.T) {
	lib := newLibrary()
	lib.pages[""] = Page[string]{}
	c := newController(lib)
	require.NoError(t, c.Load(context.Background(), alice))

	items := c.State().Items
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCloseDiscardsInflight(t *testing.T) {
	g := newGate()
	src := SourceFuncs[string]{
		FetchPageFunc: func(_ context.Context, _ Scope, _ string) (Page[string], error) {
			g.wait()
			return Page[string]{Items: []string{"late"}}, nil
		},
	}
	c := newController(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Load(context.Background(), alice)
	}()
	<-g.entered
	c.Close()
	close(g.release)
	<-done

	s := c.State()
	assert.Empty(t, s.Items)
	assert.False(t, s.Loading)
}
