package embedding

import (
	"bytes"
	"context"
	stdlog "log"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asteroid-belt/matchbox/internal/cache"
	"github.com/asteroid-belt/matchbox/internal/retry"
)

// fakeProvider returns deterministic vectors and records every call. A
// response script can inject failures per call.
type fakeProvider struct {
	mu      sync.Mutex
	calls   [][]string
	errs    []error // errs[i] is returned by call i; nil means success
	nextErr int
}

func (p *fakeProvider) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]string(nil), texts...))

	if p.nextErr < len(p.errs) {
		err := p.errs[p.nextErr]
		p.nextErr++
		if err != nil {
			return nil, err
		}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text)
	}
	return vectors, nil
}

func (p *fakeProvider) Model() string { return "fake-embedding-model" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// vectorFor derives a stable 4-dim vector from text content.
func vectorFor(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, sum / 2, 1, float32(len(text))}
}

func rateLimited() *retry.HTTPError {
	return &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
}

// newTestClient builds a client with an instant fake sleeper that records
// requested delays.
func newTestClient(p *fakeProvider, cfg Config) (*Client, *[]time.Duration) {
	c := New(p, cache.NewMemoryStore(), cfg)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestEmbedBatch_PreservesInputOrder(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestClient(p, DefaultConfig())

	texts := []string{"zebra", "apple", "mango"}
	vectors, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), vectors[i], "index %d", i)
	}
}

func TestEmbedBatch_WarmCacheMakesNoAPICalls(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestClient(p, DefaultConfig())
	ctx := context.Background()

	texts := []string{"first text", "second text"}
	warm, err := c.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	callsAfterCold := p.callCount()

	again, err := c.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	assert.Equal(t, warm, again, "warm-cache vectors must be identical")
	assert.Equal(t, callsAfterCold, p.callCount(), "warm cache must add zero API calls")

	stats := c.Stats()
	assert.Equal(t, 2, stats.CacheHits)
	assert.Equal(t, 2, stats.CacheMisses)
}

func TestEmbedBatch_PartialCacheHitsOnlyFetchMisses(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestClient(p, DefaultConfig())
	ctx := context.Background()

	_, err := c.EmbedBatch(ctx, []string{"cached"})
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(ctx, []string{"new one", "cached", "new two"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	assert.Equal(t, vectorFor("cached"), vectors[1])

	// Second call fetched only the two misses, in one sub-batch.
	p.mu.Lock()
	last := p.calls[len(p.calls)-1]
	p.mu.Unlock()
	assert.Equal(t, []string{"new one", "new two"}, last)
}

func TestEmbedBatch_SplitsIntoSubBatches(t *testing.T) {
	p := &fakeProvider{}
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2
	c, _ := newTestClient(p, cfg)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	assert.Equal(t, 3, p.callCount(), "5 texts at batch size 2 = 3 calls")
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), vectors[i])
	}
}

func TestEmbedBatch_RetriesRateLimitThenSucceeds(t *testing.T) {
	p := &fakeProvider{errs: []error{rateLimited(), nil}}
	c, slept := newTestClient(p, DefaultConfig())

	vectors, err := c.EmbedBatch(context.Background(), []string{"text"})
	require.NoError(t, err)

	assert.Equal(t, vectorFor("text"), vectors[0])
	assert.Equal(t, 2, p.callCount())
	require.Len(t, *slept, 1, "one retry wait")
	assert.GreaterOrEqual(t, (*slept)[0], time.Second)
}

func TestEmbedBatch_ExhaustedRetriesYieldSentinels(t *testing.T) {
	// Every call is rate limited; batch of 1 text, 3 attempts max.
	p := &fakeProvider{errs: []error{rateLimited(), rateLimited(), rateLimited()}}
	c, _ := newTestClient(p, DefaultConfig())

	vectors, err := c.EmbedBatch(context.Background(), []string{"doomed"})
	require.NoError(t, err, "degrading mode never fails the call")

	require.Len(t, vectors, 1)
	assert.True(t, Unavailable(vectors[0]))
	assert.Equal(t, 3, p.callCount())
	assert.Equal(t, 1, c.Stats().FailedTexts)
}

func TestEmbedBatch_FailedSubBatchDoesNotAbortRemaining(t *testing.T) {
	// First sub-batch fails permanently (400), second succeeds.
	p := &fakeProvider{errs: []error{&retry.HTTPError{StatusCode: http.StatusBadRequest}, nil}}
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 1
	c, _ := newTestClient(p, cfg)

	vectors, err := c.EmbedBatch(context.Background(), []string{"bad", "good"})
	require.NoError(t, err)

	assert.True(t, Unavailable(vectors[0]))
	assert.Equal(t, vectorFor("good"), vectors[1])
}

func TestEmbedBatchStrict_FailsOnUnresolvedText(t *testing.T) {
	p := &fakeProvider{errs: []error{&retry.HTTPError{StatusCode: http.StatusBadRequest}}}
	c, _ := newTestClient(p, DefaultConfig())

	_, err := c.EmbedBatchStrict(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedBatch_RateLimitHalvesBatchAndDoublesDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 8
	cfg.InterBatchDelay = 0

	// First call 429s, then everything succeeds. The whole input fits in
	// one sub-batch, which recovered on a retry rather than cleanly.
	p := &fakeProvider{errs: []error{rateLimited(), nil}}
	c, _ := newTestClient(p, cfg)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}
	_, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	// The 429 halved the next batch size and started a pacing delay.
	// A sub-batch that was rate limited on the way does not reset the
	// escalation even though it ultimately succeeded.
	assert.Equal(t, 4, c.nextBatchSize())
	assert.Equal(t, time.Second, c.currentDelay())
	assert.Equal(t, 1, c.Stats().RateLimitHits)
}

func TestEmbedBatch_EscalationAppliesUntilCleanSubBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2
	cfg.InterBatchDelay = 0

	// Sub-batch one 429s once, then recovers on retry. Everything after
	// succeeds first try.
	p := &fakeProvider{errs: []error{rateLimited(), nil}}
	c, _ := newTestClient(p, cfg)

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	// Call shapes: [a b] 429, [a b] retry, then the halved size applies
	// to the next sub-batch ([c] alone). That clean sub-batch resets the
	// escalation, so the final one goes back to full size ([d] is all
	// that is left of it).
	p.mu.Lock()
	var sizes []int
	for _, call := range p.calls {
		sizes = append(sizes, len(call))
	}
	p.mu.Unlock()
	assert.Equal(t, []int{2, 2, 1, 1}, sizes)
	assert.Equal(t, cfg.MaxBatchSize, c.nextBatchSize())
	assert.Equal(t, cfg.InterBatchDelay, c.currentDelay())
}

func TestMarkRateLimited_ReportsConsecutiveCount(t *testing.T) {
	var buf bytes.Buffer
	stdlog.SetOutput(&buf)
	defer stdlog.SetOutput(os.Stderr)

	c, _ := newTestClient(&fakeProvider{}, DefaultConfig())
	c.markRateLimited()
	c.markRateLimited()

	assert.Contains(t, buf.String(), "1 consecutive")
	assert.Contains(t, buf.String(), "2 consecutive")

	// A clean sub-batch restarts the streak.
	c.markSuccess()
	c.markRateLimited()
	assert.Contains(t, buf.String(), "1 consecutive")
}

func TestEmbedBatch_EscalationVisibleWhileRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 8
	p := &fakeProvider{}
	c, _ := newTestClient(p, cfg)

	c.markRateLimited()
	assert.Equal(t, 4, c.nextBatchSize())
	assert.Equal(t, time.Second, c.currentDelay())

	c.markRateLimited()
	assert.Equal(t, 2, c.nextBatchSize())
	assert.Equal(t, 2*time.Second, c.currentDelay())

	c.markSuccess()
	assert.Equal(t, 8, c.nextBatchSize())
	assert.Equal(t, time.Duration(0), c.currentDelay())
}

func TestEmbedBatch_BatchSizeNeverDropsBelowOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2
	c, _ := newTestClient(&fakeProvider{}, cfg)

	for i := 0; i < 5; i++ {
		c.markRateLimited()
	}
	assert.Equal(t, 1, c.nextBatchSize())
}

func TestEmbedBatch_CancelledBetweenSubBatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 1
	p := &fakeProvider{}
	c := New(p, cache.NewMemoryStore(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	// Cancel after the first provider call by wrapping the provider.
	c.provider = providerFunc(func(fnCtx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return p.CreateEmbeddings(fnCtx, texts)
	})

	_, err := c.EmbedBatch(ctx, []string{"one", "two", "three"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no further sub-batches after cancellation")
}

func TestEmbed_SingleText(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestClient(p, DefaultConfig())

	vector, err := c.Embed(context.Background(), "query text")
	require.NoError(t, err)
	assert.Equal(t, vectorFor("query text"), vector)
}

func TestEmbed_UnavailableSurfacesError(t *testing.T) {
	p := &fakeProvider{errs: []error{&retry.HTTPError{StatusCode: http.StatusBadRequest}}}
	c, _ := newTestClient(p, DefaultConfig())

	_, err := c.Embed(context.Background(), "query text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	c, _ := newTestClient(&fakeProvider{}, DefaultConfig())

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

// providerFunc adapts a function to the Provider interface.
type providerFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f providerFunc) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func (f providerFunc) Model() string { return "func-provider" }
