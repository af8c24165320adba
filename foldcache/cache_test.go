package foldcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ollama/constfold/content"
	"github.com/ollama/constfold/digest"
	"github.com/ollama/constfold/dtype"
	"github.com/ollama/constfold/logutil"
	"github.com/ollama/constfold/ndtype"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logutil.Discard
	}
	c := New(opts)
	t.Cleanup(c.Close)
	return c
}

func splat(t *testing.T, v float64) *content.Content {
	t.Helper()
	c, err := content.Splat(ndtype.Must([]int64{4}, dtype.Scalar(dtype.F32)), v)
	require.NoError(t, err)
	return c
}

func TestEnqueueCollapses(t *testing.T) {
	c := newTestCache(t, Options{Workers: 4})
	key := digest.Bytes([]byte("k"))
	want := splat(t, 1)

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (*content.Content, error) {
		calls.Add(1)
		<-release
		return want, nil
	}

	const n = 16
	var started atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Enqueue(key, fn) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	got, err := c.Wait(context.Background(), key)
	require.NoError(t, err)
	require.Same(t, want, got)

	require.Equal(t, int32(1), started.Load())
	require.Equal(t, int32(1), calls.Load())

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Computations)
	require.Equal(t, int64(n-1), stats.Collapsed)
	require.Equal(t, 1, stats.Entries)
}

func TestGetOrComputeWaitsForPending(t *testing.T) {
	c := newTestCache(t, Options{})
	key := digest.Bytes([]byte("k"))
	want := splat(t, 2)

	release := make(chan struct{})
	require.True(t, c.Enqueue(key, func(ctx context.Context) (*content.Content, error) {
		<-release
		return want, nil
	}))

	// laufender Fold ist fuer Lookup ohne WaitPending ein Miss
	_, ok := c.Lookup(key)
	require.False(t, ok)

	done := make(chan *content.Content)
	go func() {
		v, err := c.GetOrCompute(context.Background(), key, func(ctx context.Context) (*content.Content, error) {
			t.Error("erwartet keine zweite Berechnung")
			return nil, nil
		})
		if err != nil {
			t.Error(err)
		}
		done <- v
	}()

	close(release)
	select {
	case v := <-done:
		require.Same(t, want, v)
	case <-time.After(5 * time.Second):
		t.Fatal("GetOrCompute hat nicht auf den laufenden Fold gewartet")
	}

	v, ok := c.Lookup(key)
	require.True(t, ok)
	require.Same(t, want, v)
}

func TestLookupWaitPending(t *testing.T) {
	c := newTestCache(t, Options{WaitPending: true})
	key := digest.Bytes([]byte("k"))
	want := splat(t, 3)

	c.Enqueue(key, func(ctx context.Context) (*content.Content, error) {
		time.Sleep(10 * time.Millisecond)
		return want, nil
	})

	v, ok := c.Lookup(key)
	require.True(t, ok)
	require.Same(t, want, v)
	require.Equal(t, int64(1), c.Stats().Hits)
}

func TestFailedFoldIsRetried(t *testing.T) {
	c := newTestCache(t, Options{})
	key := digest.Bytes([]byte("k"))
	errFold := errors.New("fold failed")

	_, err := c.GetOrCompute(context.Background(), key, func(ctx context.Context) (*content.Content, error) {
		return nil, errFold
	})
	require.ErrorIs(t, err, errFold)
	require.Equal(t, 0, c.Len())

	want := splat(t, 4)
	v, err := c.GetOrCompute(context.Background(), key, func(ctx context.Context) (*content.Content, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.Same(t, want, v)
	require.Equal(t, int64(2), c.Stats().Computations)
}

func TestPeekAndStore(t *testing.T) {
	c := newTestCache(t, Options{})
	key := digest.Bytes([]byte("k"))

	_, ok := c.Peek(key)
	require.False(t, ok)

	want := splat(t, 5)
	c.Store(key, want)

	v, ok := c.Peek(key)
	require.True(t, ok)
	require.Same(t, want, v)

	// Peek aendert keine Zaehler
	require.Zero(t, c.Stats().Hits)
	require.Zero(t, c.Stats().Misses)

	_, err := c.Wait(context.Background(), digest.Bytes([]byte("other")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClose(t *testing.T) {
	c := New(Options{Workers: 1, Logger: logutil.Discard})
	key := digest.Bytes([]byte("k"))

	started := make(chan struct{})
	c.Enqueue(key, func(ctx context.Context) (*content.Content, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	c.Close()
	require.Equal(t, 0, c.Len())

	_, err := c.GetOrCompute(context.Background(), key, nil)
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, c.Enqueue(key, nil))

	_, ok := c.Lookup(key)
	require.False(t, ok)

	// doppeltes Close ist erlaubt
	c.Close()
}

func TestGetOrComputeCallerContext(t *testing.T) {
	c := newTestCache(t, Options{})
	key := digest.Bytes([]byte("cancelled"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrCompute(ctx, key, func(fctx context.Context) (*content.Content, error) {
		return nil, fctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, c.Len())

	// ohne Abbruch wird der Schluessel erneut berechnet
	want := splat(t, 2)
	got, err := c.GetOrCompute(context.Background(), key, func(fctx context.Context) (*content.Content, error) {
		require.NoError(t, fctx.Err())
		return want, nil
	})
	require.NoError(t, err)
	require.Same(t, want, got)
}

func TestGetOrComputeCancelledByClose(t *testing.T) {
	c := New(Options{Logger: logutil.Discard})
	key := digest.Bytes([]byte("closing"))

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(context.Background(), key, func(fctx context.Context) (*content.Content, error) {
			close(started)
			<-fctx.Done()
			return nil, fctx.Err()
		})
		errc <- err
	}()

	<-started
	c.Close()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("GetOrCompute wurde durch Close nicht abgebrochen")
	}
}
