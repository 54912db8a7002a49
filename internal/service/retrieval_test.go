package service

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/index"
)

// saveCorpus builds and commits an artifact from the given chunk texts
// using the static embedder, and returns the backing store.
func saveCorpus(t *testing.T, dir string, texts ...string) *artifact.Store {
	t.Helper()

	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk.Chunk{ID: uint64(i), Text: text}
	}

	embedder := embed.NewStaticEmbedder()
	idx, err := index.NewBuilder(embedder, 0, nil).Build(context.Background(), chunks)
	require.NoError(t, err)

	store := artifact.NewStore(dir, nil)
	_, err = store.Save(context.Background(), chunks, idx, artifact.SaveInfo{Model: embedder.ModelName()})
	require.NoError(t, err)
	return store
}

// countingLoader wraps a store, counts loads, and can hold them on a gate.
type countingLoader struct {
	*artifact.Store
	loads atomic.Int64
	gate  chan struct{}
}

func (c *countingLoader) Load(ctx context.Context) (*artifact.Loaded, error) {
	c.loads.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.Store.Load(ctx)
}

func newService(t *testing.T, store Loader, opts Options) *Retrieval {
	t.Helper()
	r := NewRetrieval(store, embed.NewStaticEmbedder(), opts)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRetrieval_QueryReturnsNearestChunks(t *testing.T) {
	// Given: a committed corpus
	store := saveCorpus(t, t.TempDir(),
		"the wizard casts fireball at the goblins",
		"a rogue picks the lock on the chest",
		"the cleric heals the fallen paladin")
	r := newService(t, store, Options{})

	// When: I query with the exact text of one chunk
	results, err := r.Query(context.Background(), "a rogue picks the lock on the chest", 2)
	require.NoError(t, err)

	// Then: that chunk is the top hit at distance zero
	require.Len(t, results, 2)
	assert.Equal(t, uint64(1), results[0].ChunkID)
	assert.Equal(t, "a rogue picks the lock on the chest", results[0].Text)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.Equal(t, 0, results[0].Rank)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)

	assert.Equal(t, StateReady, r.State())
}

func TestRetrieval_InvalidQuery(t *testing.T) {
	store := saveCorpus(t, t.TempDir(), "some text")
	r := newService(t, store, Options{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := r.Query(context.Background(), q, 1)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}

	// An invalid query never triggers a load.
	assert.Equal(t, StateUnloaded, r.State())
}

func TestRetrieval_DefaultK(t *testing.T) {
	store := saveCorpus(t, t.TempDir(), "one", "two", "three", "four")
	r := newService(t, store, Options{DefaultK: 2})

	results, err := r.Query(context.Background(), "three", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieval_ConcurrentFirstQueriesLoadOnce(t *testing.T) {
	// Given: many queries arriving before anything is loaded
	store := saveCorpus(t, t.TempDir(), "alpha", "beta", "gamma")
	loader := &countingLoader{Store: store}
	r := newService(t, loader, Options{})

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Query(context.Background(), "beta", 1)
		}(i)
	}
	wg.Wait()

	// Then: every query succeeded off a single shared load
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), loader.loads.Load())
}

func TestRetrieval_FailFastWhileLoading(t *testing.T) {
	// Given: a load held open on a gate
	store := saveCorpus(t, t.TempDir(), "alpha", "beta")
	loader := &countingLoader{Store: store, gate: make(chan struct{})}
	r := newService(t, loader, Options{Policy: LoadPolicyFailFast})

	// When: queries arrive during the load
	_, err := r.Query(context.Background(), "alpha", 1)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = r.Query(context.Background(), "alpha", 1)
	assert.ErrorIs(t, err, ErrNotReady)

	// Then: once the load completes, queries serve normally
	close(loader.gate)
	require.Eventually(t, func() bool { return r.State() == StateReady }, 2*time.Second, 10*time.Millisecond)

	results, err := r.Query(context.Background(), "alpha", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int64(1), loader.loads.Load())
}

func TestRetrieval_FailedLoadIsSticky(t *testing.T) {
	// Given: an empty artifact directory
	store := artifact.NewStore(t.TempDir(), nil)
	r := newService(t, store, Options{})

	// When: the first query triggers the load
	_, err := r.Query(context.Background(), "anything", 1)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, StateFailed, r.State())

	// Then: later queries fail the same way without retrying
	_, err = r.Query(context.Background(), "anything", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetrieval_FailedLoadNeverRerun(t *testing.T) {
	// Given: a load that has already settled as Failed
	loader := &countingLoader{Store: artifact.NewStore(t.TempDir(), nil)}
	r := newService(t, loader, Options{})

	_, err := r.load(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int64(1), loader.loads.Load())

	// When: a straggler that observed Unloaded re-enters the load path
	_, err = r.load(context.Background())

	// Then: the stored failure is returned without a second attempt
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(1), loader.loads.Load())
	assert.Equal(t, StateFailed, r.State())
}

func TestRetrieval_ModelMismatchFailsLoad(t *testing.T) {
	// Given: an artifact recorded under a different model name
	dir := t.TempDir()
	chunks := []chunk.Chunk{{ID: 0, Text: "stale"}}
	idx, err := index.NewBuilder(embed.NewStaticEmbedder(), 0, nil).Build(context.Background(), chunks)
	require.NoError(t, err)
	store := artifact.NewStore(dir, nil)
	_, err = store.Save(context.Background(), chunks, idx, artifact.SaveInfo{Model: "nomic-embed-text"})
	require.NoError(t, err)

	r := newService(t, store, Options{})

	_, err = r.Query(context.Background(), "stale", 1)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "nomic-embed-text")
}

func TestRetrieval_EmbedTimeout(t *testing.T) {
	store := saveCorpus(t, t.TempDir(), "alpha", "beta")
	slow := &slowEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), delay: time.Second}
	r := NewRetrieval(store, slow, Options{EmbedTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = r.Close() })

	// Warm the artifact with a fast path first.
	slow.delay = 0
	_, err := r.Query(context.Background(), "alpha", 1)
	require.NoError(t, err)

	slow.delay = time.Second
	_, err = r.Query(context.Background(), "alpha", 1)
	assert.ErrorIs(t, err, embed.ErrTimeout)
}

type slowEmbedder struct {
	*embed.StaticEmbedder
	delay time.Duration
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.StaticEmbedder.Embed(ctx, text)
}

func TestRetrieval_ReloadPicksUpNewGeneration(t *testing.T) {
	// Given: a service serving generation 1
	dir := t.TempDir()
	store := saveCorpus(t, dir, "old lore")
	r := newService(t, store, Options{})

	_, err := r.Query(context.Background(), "old lore", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Status().Generation)

	// When: generation 2 is committed and the service reloads
	saveCorpus(t, dir, "new lore", "extra chapter")
	require.NoError(t, r.Reload(context.Background()))

	// Then: queries hit the new corpus
	assert.Equal(t, uint64(2), r.Status().Generation)
	results, err := r.Query(context.Background(), "new lore", 1)
	require.NoError(t, err)
	assert.Equal(t, "new lore", results[0].Text)
}

func TestRetrieval_FailedReloadKeepsServing(t *testing.T) {
	dir := t.TempDir()
	store := saveCorpus(t, dir, "still here")
	r := newService(t, store, Options{})

	_, err := r.Query(context.Background(), "still here", 1)
	require.NoError(t, err)

	// Given: the committed manifest disappears
	require.NoError(t, os.Remove(store.ManifestPath()))

	// When: a reload fails
	err = r.Reload(context.Background())
	require.Error(t, err)

	// Then: the previous generation keeps serving
	assert.Equal(t, StateReady, r.State())
	results, err := r.Query(context.Background(), "still here", 1)
	require.NoError(t, err)
	assert.Equal(t, "still here", results[0].Text)
}

func TestRetrieval_QueryAfterClose(t *testing.T) {
	store := saveCorpus(t, t.TempDir(), "gone")
	r := NewRetrieval(store, embed.NewStaticEmbedder(), Options{})

	require.NoError(t, r.Close())
	_, err := r.Query(context.Background(), "gone", 1)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, r.Close())
}

func TestWatcher_ReloadsOnCommit(t *testing.T) {
	// Given: a watched service serving generation 1
	dir := t.TempDir()
	store := saveCorpus(t, dir, "first edition")
	r := newService(t, store, Options{})
	_, err := r.Query(context.Background(), "first edition", 1)
	require.NoError(t, err)

	w, err := NewWatcher(r, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	// When: a new generation is committed behind its back
	saveCorpus(t, dir, "second edition", "errata")

	// Then: the watcher reloads it
	require.Eventually(t, func() bool {
		return r.Status().Generation == 2
	}, 5*time.Second, 20*time.Millisecond)
}
