package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Title string   `json:"title"`
	Links []string `json:"links"`
}

func newTestCache(t *testing.T, cfg Config) (*Cache, *MemoryStore, clockwork.FakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := clockwork.NewFakeClock()
	c, err := New(store, cfg, WithClock(clock))
	require.NoError(t, err)
	return c, store, clock
}

func TestUse_PersistsUntilExpiry(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(t, Config{Expiry: time.Minute})

	var runs int
	factory := func(context.Context) (*document, error) {
		runs++
		return &document{Title: "Demo"}, nil
	}

	first, err := Use(ctx, c, factory, "OGCAPI", "root", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Demo", first.Title)

	second, err := Use(ctx, c, factory, "OGCAPI", "root", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, store.Len())

	clock.Advance(2 * time.Minute)

	_, err = Use(ctx, c, factory, "OGCAPI", "root", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, runs)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(2), stats.Runs)
}

func TestUse_PurgeRemovesOnlyExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(t, Config{Expiry: 10 * time.Minute})

	value := func(title string) func(context.Context) (document, error) {
		return func(context.Context) (document, error) {
			return document{Title: title}, nil
		}
	}

	_, err := Use(ctx, c, value("a"), "a")
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	_, err = Use(ctx, c, value("b"), "b")
	require.NoError(t, err)
	_, err = Use(ctx, c, value("c"), "c")
	require.NoError(t, err)
	require.Equal(t, 3, store.Len())

	clock.Advance(5 * time.Minute)

	got, err := Use(ctx, c, value("b-again"), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title, "b has not expired and comes from the store")
	assert.Equal(t, 2, store.Len())

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestUse_CoalescesConcurrentCallers(t *testing.T) {
	c, _, _ := newTestCache(t, Config{Expiry: time.Hour})

	var runs atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	factory := func(context.Context) (*document, error) {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return &document{Title: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*document, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Use(context.Background(), c, factory, "shared")
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestUse_PersistenceDisabled(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCache(t, Config{Expiry: 0})

	var runs int
	factory := func(context.Context) (int, error) {
		runs++
		return runs, nil
	}

	first, err := Use(ctx, c, factory, "k")
	require.NoError(t, err)
	second, err := Use(ctx, c, factory, "k")
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 0, store.Len())
}

func TestUse_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCache(t, Config{Expiry: time.Hour})

	boom := errors.New("boom")
	var runs int
	factory := func(context.Context) (string, error) {
		runs++
		if runs == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := Use(ctx, c, factory, "k")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())

	got, err := Use(ctx, c, factory, "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, runs)
}

func TestUse_NonSerializableValue(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCache(t, Config{Expiry: time.Hour})

	type handle struct {
		Title   string `json:"title"`
		Updates chan int
		Notify  func()  `json:"notify,omitempty"`
		Ratio   float64 `json:"ratio"`
	}
	ch := make(chan int)

	var runs int
	factory := func(context.Context) (handle, error) {
		runs++
		return handle{Title: "Demo", Updates: ch, Notify: func() {}, Ratio: 0.5}, nil
	}

	got, err := Use(ctx, c, factory, "handle")
	require.NoError(t, err)
	assert.Equal(t, ch, got.Updates)
	assert.NotNil(t, got.Notify)

	entry, err := store.Get(ctx, "handle")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Demo","Updates":null,"notify":null,"ratio":0.5}`, string(entry.Payload))

	again, err := Use(ctx, c, factory, "handle")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Equal(t, "Demo", again.Title)
	assert.Equal(t, 0.5, again.Ratio)
	assert.Nil(t, again.Updates)
}

func TestUse_TaskTimeout(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, Config{Expiry: time.Hour, TaskTimeout: 50 * time.Millisecond})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	_, err := Use(ctx, c, func(context.Context) (string, error) {
		<-release
		return "late", nil
	}, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	got, err := Use(ctx, c, func(context.Context) (string, error) {
		return "fresh", nil
	}, "slow")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestUse_CallerCancellationDoesNotAbortTask(t *testing.T) {
	c, _, _ := newTestCache(t, Config{Expiry: time.Hour})

	started := make(chan struct{})
	release := make(chan struct{})
	factory := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "done", ctx.Err()
	}

	cancelled, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Use(cancelled, c, factory, "k")
		errCh <- err
	}()

	<-started
	resCh := make(chan string, 1)
	go func() {
		v, err := Use(context.Background(), c, factory, "k")
		assert.NoError(t, err)
		resCh <- v
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.Equal(t, "done", <-resCh)
}

func TestCache_Key(t *testing.T) {
	c, err := New(nil, Config{Expiry: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "OGCAPI/root/https://example.com", c.Key("OGCAPI", "root", "https://example.com"))

	c, err = New(nil, Config{Separator: "|"})
	require.NoError(t, err)
	assert.Equal(t, "a|b", c.Key("a", "b"))
}

func TestConfig_Validate(t *testing.T) {
	_, err := New(nil, Config{TaskTimeout: -time.Second})
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, DefaultExpiry, Default().Config().Expiry)
}
