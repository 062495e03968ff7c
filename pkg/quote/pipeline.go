package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"paylink/pkg/types"
)

const (
	// DefaultDebounce is how long a submitted request must go without
	// being superseded before a network call is made.
	DefaultDebounce = 600 * time.Millisecond

	// DefaultTimeout bounds a single quote call so the pipeline can
	// never sit in loading forever.
	DefaultTimeout = 20 * time.Second
)

// ErrSuperseded is delivered to a submission whose work was discarded
// because a newer submission replaced it (or the pipeline closed).
var ErrSuperseded = errors.New("quote request superseded")

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("quote pipeline closed")

// Fetcher is the stateless quote call the pipeline coordinates.
type Fetcher interface {
	GetQuote(ctx context.Context, req *types.QuoteRequest) (*types.Quote, error)
}

// Result is the settled outcome of one submission.
type Result struct {
	Quote *types.Quote
	Err   error
}

// Snapshot is the externally observable pipeline state. Quote, Loading
// and ErrMsg are mutually exclusive once a request settles.
type Snapshot struct {
	Quote   *types.Quote
	Loading bool
	ErrMsg  string
}

// Pipeline owns debouncing, in-flight cancellation, and error
// normalization for quote acquisition. Each Submit supersedes the
// previous one: the older call is cancelled before the newer one runs,
// so only the most recent non-cancelled call's result is ever applied
// to state.
type Pipeline struct {
	fetcher  Fetcher
	debounce time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	quote   *types.Quote
	loading bool
	errMsg  string
	closed  bool
}

// NewPipeline creates a pipeline with the default debounce window and
// call timeout.
func NewPipeline(fetcher Fetcher) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		debounce: DefaultDebounce,
		timeout:  DefaultTimeout,
	}
}

// SetDebounce overrides the debounce window.
func (p *Pipeline) SetDebounce(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debounce = d
}

// SetTimeout overrides the per-call timeout. Zero disables it.
func (p *Pipeline) SetTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

// Submit replaces the pipeline's current request. A nil request clears
// quote and error immediately with no network activity. A non-nil
// request is held for the debounce window and only fetched if nothing
// supersedes it; any prior pending or in-flight work is cancelled
// first. The returned channel delivers exactly one Result: the settled
// outcome, or ErrSuperseded if a later Submit won.
func (p *Pipeline) Submit(req *types.QuoteRequest) <-chan Result {
	done := make(chan Result, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		done <- Result{Err: ErrClosed}
		return done
	}

	p.gen++
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if req == nil {
		// Missing precondition: no request exists, so no quote and no
		// error either.
		p.quote = nil
		p.errMsg = ""
		p.loading = false
		p.mu.Unlock()
		done <- Result{}
		return done
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	debounce := p.debounce
	p.mu.Unlock()

	go p.run(ctx, gen, debounce, req, done)
	return done
}

func (p *Pipeline) run(ctx context.Context, gen uint64, debounce time.Duration, req *types.QuoteRequest, done chan<- Result) {
	timer := time.NewTimer(debounce)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Superseded inside the debounce window: no network call.
		done <- Result{Err: ErrSuperseded}
		return
	case <-timer.C:
	}

	p.mu.Lock()
	if p.gen != gen || ctx.Err() != nil {
		p.mu.Unlock()
		done <- Result{Err: ErrSuperseded}
		return
	}
	p.loading = true
	p.errMsg = ""
	timeout := p.timeout
	p.mu.Unlock()

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	q, err := p.fetcher.GetQuote(callCtx, req)

	p.mu.Lock()
	if p.gen != gen || ctx.Err() != nil {
		// A newer submission owns the state now; this outcome must not
		// be observable.
		p.mu.Unlock()
		done <- Result{Err: ErrSuperseded}
		return
	}
	p.loading = false
	if err != nil {
		p.quote = nil
		p.errMsg = normalizeError(err)
		p.mu.Unlock()
		done <- Result{Err: err}
		return
	}
	p.quote = q
	p.errMsg = ""
	p.mu.Unlock()
	done <- Result{Quote: q}
}

// Snapshot returns the current observable state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Quote:   p.quote,
		Loading: p.loading,
		ErrMsg:  p.errMsg,
	}
}

// Close cancels any pending or in-flight work and rejects further
// submissions. Used when the consuming session is torn down.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.quote = nil
	p.errMsg = ""
	p.loading = false
}

// Await blocks until a submission settles or the context expires.
func Await(ctx context.Context, done <-chan Result) (Result, error) {
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// normalizeError maps a quote failure to the user-visible message:
// the aggregator's own message when one exists, a timeout notice for
// deadline expiry, and a generic fallback otherwise.
func normalizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "quote request timed out"
	case err.Error() != "":
		return err.Error()
	default:
		return "failed to get quote"
	}
}
