package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/asteroid-belt/matchbox/internal/cache"
	"github.com/asteroid-belt/matchbox/internal/retry"
)

// ErrUnavailable marks an embedding the API could not produce within the
// retry budget.
var ErrUnavailable = errors.New("embedding unavailable")

// Unavailable reports whether a result slot carries the unavailable
// marker. Callers must use this rather than testing vector length.
func Unavailable(vector []float32) bool {
	return vector == nil
}

// Config holds client tunables.
type Config struct {
	// MaxBatchSize caps texts per API call (default 20).
	MaxBatchSize int

	// InterBatchDelay is the baseline pause between sub-batch calls.
	InterBatchDelay time.Duration

	// RequestsPerMinute paces calls process-wide; 0 disables pacing.
	RequestsPerMinute int

	// Policy governs retries on failed calls.
	Policy retry.Policy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:      20,
		InterBatchDelay:   0,
		RequestsPerMinute: 0,
		Policy:            retry.Default(),
	}
}

// Stats is a snapshot of client counters since creation.
type Stats struct {
	CacheHits     int
	CacheMisses   int
	APICalls      int
	RateLimitHits int
	FailedTexts   int
}

// Client is a cache-aware embedding client. It batches cache misses,
// retries rate-limited calls per the configured policy, and adapts batch
// size and pacing while the API is pushing back.
//
// One Client instance should be shared by all concurrent ranking requests
// so that rate-limit state stays coordinated process-wide. Sub-batches
// within a single call run strictly sequentially; overlapping them would
// defeat the backoff.
type Client struct {
	provider Provider
	cache    cache.Store
	config   Config
	limiter  *rate.Limiter

	// sleep is injectable so tests never wait on the wall clock.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state rateLimitState
	stats Stats
}

// rateLimitState tracks API pushback: consecutive 429s, the batch size to
// use next, and the pause before the next sub-batch. Reset to baseline by
// the first fully successful sub-batch.
type rateLimitState struct {
	consecutive429 int
	batchSize      int
	delay          time.Duration
}

// New creates a Client over the given provider and cache store.
func New(provider Provider, store cache.Store, cfg Config) *Client {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		provider: provider,
		cache:    store,
		config:   cfg,
		limiter:  limiter,
		sleep:    sleepContext,
		state: rateLimitState{
			batchSize: cfg.MaxBatchSize,
			delay:     cfg.InterBatchDelay,
		},
	}
}

// Embed returns the vector for a single text, cache-aware. It fails with
// ErrUnavailable when the API cannot produce the embedding within the
// retry budget.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedBatch(ctx, []string{text}, true)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input, aligned by index regardless of
// cache hits, sub-batch splits, or retries. Inputs that could not be
// embedded within the retry budget come back as nil sentinels; use
// Unavailable to test for them.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedBatch(ctx, texts, false)
}

// EmbedBatchStrict is EmbedBatch but fails the whole call if any input
// stays unresolved.
func (c *Client) EmbedBatchStrict(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedBatch(ctx, texts, true)
}

func (c *Client) embedBatch(ctx context.Context, texts []string, strict bool) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	hits, err := c.cache.GetMany(ctx, texts)
	if err != nil {
		// The cache is an optimization, never a dependency: degrade to
		// all-miss and keep going.
		log.Printf("embedding cache read failed, treating all as misses: %v", err)
		hits = nil
	}

	var missIdx []int
	for i, text := range texts {
		if vector, ok := hits[text]; ok {
			results[i] = vector
		} else {
			missIdx = append(missIdx, i)
		}
	}
	c.addCacheStats(len(texts)-len(missIdx), len(missIdx))

	if len(missIdx) == 0 {
		return results, nil
	}

	first := true
	for start := 0; start < len(missIdx); {
		// Cancellation point between sub-batches.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + c.nextBatchSize()
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batchIdx := missIdx[start:end]

		if !first {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}
		first = false

		batchTexts := make([]string, len(batchIdx))
		for i, idx := range batchIdx {
			batchTexts[i] = texts[idx]
		}

		vectors, ok, limited := c.callWithRetry(ctx, batchTexts)
		if !ok {
			if strict {
				return nil, fmt.Errorf("embed %d text(s): %w", len(batchTexts), ErrUnavailable)
			}
			// A partial result beats total failure: leave the nil
			// markers in place and keep going.
			c.addFailed(len(batchIdx))
			start = end
			continue
		}

		for i, idx := range batchIdx {
			results[idx] = vectors[i]
			if err := c.cache.Put(ctx, texts[idx], vectors[i]); err != nil {
				log.Printf("embedding cache write failed: %v", err)
			}
		}
		// Only a sub-batch that saw no pushback at all resets escalation.
		// One that 429ed and then squeaked through on a retry keeps the
		// halved batch size and longer pause for the batches after it.
		if !limited {
			c.markSuccess()
		}
		start = end
	}

	return results, nil
}

// callWithRetry submits one sub-batch, consulting the retry policy on
// every failure. The same texts are resubmitted as-is; sub-batches are
// never re-partitioned mid-retry. limited reports whether any attempt was
// rate limited, even if a later attempt succeeded.
func (c *Client) callWithRetry(ctx context.Context, texts []string) (vectors [][]float32, ok bool, limited bool) {
	for attempt := 0; ; attempt++ {
		c.countCall()
		vectors, err := c.provider.CreateEmbeddings(ctx, texts)
		if err == nil {
			return vectors, true, limited
		}

		if isRateLimit(err) {
			limited = true
			c.markRateLimited()
		}

		decision := c.config.Policy.Decide(attempt, err)
		if decision.Action != retry.Retry {
			log.Printf("embedding call failed permanently after %d attempt(s): %v", attempt+1, err)
			return nil, false, limited
		}

		log.Printf("embedding call failed (attempt %d/%d), retrying in %s (%s): %v",
			attempt+1, c.config.Policy.MaxAttempts, decision.Delay, decision.Source, err)
		if err := c.sleep(ctx, decision.Delay); err != nil {
			return nil, false, limited
		}
	}
}

// pause waits between consecutive sub-batch calls: the process-wide pacer
// first, then the adaptive inter-batch delay.
func (c *Client) pause(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if d := c.currentDelay(); d > 0 {
		return c.sleep(ctx, d)
	}
	return nil
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Model returns the underlying provider's model name.
func (c *Client) Model() string {
	return c.provider.Model()
}

func (c *Client) nextBatchSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.batchSize <= 0 {
		c.state.batchSize = c.config.MaxBatchSize
	}
	return c.state.batchSize
}

func (c *Client) currentDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.delay
}

// markRateLimited escalates pushback handling: halve the batch size and
// double the inter-batch pause until something succeeds.
func (c *Client) markRateLimited() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.RateLimitHits++
	c.state.consecutive429++

	if c.state.batchSize > 1 {
		c.state.batchSize /= 2
	}

	switch {
	case c.state.delay <= 0:
		c.state.delay = time.Second
	default:
		c.state.delay *= 2
	}
	if max := c.config.Policy.MaxDelay; max > 0 && c.state.delay > max {
		c.state.delay = max
	}

	log.Printf("embedding API rate limited (%d consecutive): batch size %d, inter-batch delay %s",
		c.state.consecutive429, c.state.batchSize, c.state.delay)
}

// markSuccess resets pushback state to baseline after a clean sub-batch.
func (c *Client) markSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = rateLimitState{
		batchSize: c.config.MaxBatchSize,
		delay:     c.config.InterBatchDelay,
	}
}

func (c *Client) addCacheStats(hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.CacheHits += hits
	c.stats.CacheMisses += misses
}

func (c *Client) addFailed(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.FailedTexts += n
}

func (c *Client) countCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.APICalls++
}

func isRateLimit(err error) bool {
	var httpErr *retry.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
