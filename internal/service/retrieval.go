// Package service hosts the retrieval engine behind the MCP and RPC
// surfaces: lazy artifact loading, query embedding, and k-NN search.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/embed"
)

// Errors surfaced to protocol layers, which map them to wire error codes.
var (
	// ErrInvalidQuery is returned for an empty or whitespace-only query.
	ErrInvalidQuery = errors.New("query must not be empty")

	// ErrNotReady is returned under the fail_fast policy while artifacts
	// are still loading.
	ErrNotReady = errors.New("artifacts are still loading")

	// ErrUnavailable is returned once a load has failed; every query fails
	// with it until a Reload succeeds.
	ErrUnavailable = errors.New("retrieval service unavailable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("retrieval service is closed")
)

// State is the lifecycle phase of the service.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LoadPolicy controls what queries do while the first load is in flight.
type LoadPolicy string

const (
	// LoadPolicyBlock makes queries wait for the load to finish.
	LoadPolicyBlock LoadPolicy = "block"
	// LoadPolicyFailFast makes queries return ErrNotReady immediately.
	LoadPolicyFailFast LoadPolicy = "fail_fast"
)

// Loader supplies committed artifacts. *artifact.Store is the production
// implementation.
type Loader interface {
	Load(ctx context.Context) (*artifact.Loaded, error)
	Dir() string
	ManifestPath() string
}

// Result is one retrieved chunk.
type Result struct {
	ChunkID  uint64  `json:"chunk_id"`
	Text     string  `json:"text"`
	Distance float32 `json:"distance"`
	Rank     int     `json:"rank"`
}

// Status is a snapshot of the service for status surfaces.
type Status struct {
	State      string     `json:"state"`
	Generation uint64     `json:"generation,omitempty"`
	Chunks     int        `json:"chunks,omitempty"`
	Dimensions int        `json:"dimensions,omitempty"`
	Model      string     `json:"model,omitempty"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Options configures a Retrieval service.
type Options struct {
	// Policy defaults to LoadPolicyBlock.
	Policy LoadPolicy
	// DefaultK is used when a query asks for k <= 0. Defaults to 5.
	DefaultK int
	// EmbedTimeout bounds query embedding. Defaults to embed.DefaultTimeout.
	EmbedTimeout time.Duration
	Logger       *slog.Logger
}

// Retrieval answers similarity queries over a committed artifact pair.
//
// Artifacts load lazily on the first query. Concurrent first queries share
// a single load; under LoadPolicyBlock they all wait on it, under
// LoadPolicyFailFast they fail with ErrNotReady until it completes.
type Retrieval struct {
	store    Loader
	embedder embed.Embedder
	policy   LoadPolicy
	defaultK int
	timeout  time.Duration
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	loaded  *artifact.Loaded
	loadErr error
	closed  bool
}

// NewRetrieval creates the service. Nothing is loaded until the first
// query or an explicit Reload.
func NewRetrieval(store Loader, embedder embed.Embedder, opts Options) *Retrieval {
	if opts.Policy == "" {
		opts.Policy = LoadPolicyBlock
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = embed.DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Retrieval{
		store:    store,
		embedder: embedder,
		policy:   opts.Policy,
		defaultK: opts.DefaultK,
		timeout:  opts.EmbedTimeout,
		logger:   opts.Logger.With(slog.String("component", "retrieval")),
	}
}

// Query embeds the text and returns the k nearest chunks, ascending by
// distance. k <= 0 uses the configured default.
func (r *Retrieval) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidQuery
	}
	if k <= 0 {
		k = r.defaultK
	}

	loaded, err := r.ensureReady(ctx)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	vector, err := r.embedder.Embed(embedCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, embed.ErrTimeout) {
			err = fmt.Errorf("%w: %v", embed.ErrTimeout, err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := loaded.Index.Search(vector, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ChunkID:  h.ChunkID,
			Text:     loaded.Chunks[h.ChunkID].Text,
			Distance: h.Distance,
			Rank:     h.Rank,
		}
	}
	r.logger.Debug("query served",
		slog.Int("k", k),
		slog.Int("results", len(results)))
	return results, nil
}

// ensureReady returns the loaded artifact, driving the lazy load according
// to the configured policy.
func (r *Retrieval) ensureReady(ctx context.Context) (*artifact.Loaded, error) {
	r.mu.RLock()
	state, loaded, loadErr, closed := r.state, r.loaded, r.loadErr, r.closed
	r.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}

	switch state {
	case StateReady:
		return loaded, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, loadErr)
	}

	if r.policy == LoadPolicyFailFast {
		// Kick the load off but do not wait for it.
		go func() { _, _ = r.load(context.WithoutCancel(ctx)) }()
		return nil, ErrNotReady
	}
	return r.load(ctx)
}

// load runs the artifact load, deduplicated so concurrent callers share
// one attempt.
func (r *Retrieval) load(ctx context.Context) (*artifact.Loaded, error) {
	v, err, _ := r.group.Do("load", func() (interface{}, error) {
		// A caller that observed Unloaded just before another load settled
		// lands here after the singleflight key completes. Failed is
		// terminal for the lazy load, so never run it again.
		r.mu.RLock()
		state, loaded, loadErr := r.state, r.loaded, r.loadErr
		r.mu.RUnlock()
		switch state {
		case StateReady:
			return loaded, nil
		case StateFailed:
			return nil, loadErr
		}

		r.setState(StateLoading, nil, nil)
		r.logger.Info("loading artifacts", slog.String("dir", r.store.Dir()))

		loaded, err := r.store.Load(ctx)
		if err == nil {
			err = r.validate(loaded.Manifest)
		}
		if err != nil {
			r.setState(StateFailed, nil, err)
			r.logger.Error("artifact load failed", slog.String("error", err.Error()))
			return nil, err
		}

		r.setState(StateReady, loaded, nil)
		return loaded, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v.(*artifact.Loaded), nil
}

// validate rejects artifacts built with a different model or dimension
// than the configured embedder, which would silently corrupt distances.
func (r *Retrieval) validate(m *artifact.Manifest) error {
	if model := r.embedder.ModelName(); model != m.Model {
		return fmt.Errorf("artifact built with model %q but embedder is %q; rebuild the index", m.Model, model)
	}
	if dim := r.embedder.Dimensions(); dim > 0 && dim != m.Dimensions {
		return fmt.Errorf("artifact dimension %d does not match embedder dimension %d", m.Dimensions, dim)
	}
	return nil
}

// Reload discards the current artifacts and loads the committed generation
// again. Queries keep serving the old data until the new load finishes.
func (r *Retrieval) Reload(ctx context.Context) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	_, err, _ := r.group.Do("reload", func() (interface{}, error) {
		loaded, err := r.store.Load(ctx)
		if err == nil {
			err = r.validate(loaded.Manifest)
		}
		if err != nil {
			// Keep serving the previous generation on a failed reload.
			r.mu.Lock()
			if r.state != StateReady {
				r.state = StateFailed
				r.loadErr = err
			}
			r.mu.Unlock()
			r.logger.Error("reload failed", slog.String("error", err.Error()))
			return nil, err
		}

		r.setState(StateReady, loaded, nil)
		r.logger.Info("artifacts reloaded",
			slog.Uint64("generation", loaded.Manifest.Generation),
			slog.Int("chunks", len(loaded.Chunks)))
		return nil, nil
	})
	return err
}

func (r *Retrieval) setState(state State, loaded *artifact.Loaded, err error) {
	r.mu.Lock()
	r.state = state
	if loaded != nil || state != StateLoading {
		r.loaded = loaded
	}
	r.loadErr = err
	r.mu.Unlock()
}

// State returns the current lifecycle phase.
func (r *Retrieval) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Status reports a snapshot for status tools and endpoints.
func (r *Retrieval) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{State: r.state.String()}
	if r.loaded != nil {
		m := r.loaded.Manifest
		s.Generation = m.Generation
		s.Chunks = len(r.loaded.Chunks)
		s.Dimensions = m.Dimensions
		s.Model = m.Model
		builtAt := m.CreatedAt
		s.BuiltAt = &builtAt
	}
	if r.loadErr != nil {
		s.LastError = r.loadErr.Error()
	}
	return s
}

// Close releases the embedder. Queries after Close fail with ErrClosed.
func (r *Retrieval) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.loaded = nil
	r.mu.Unlock()
	return r.embedder.Close()
}
